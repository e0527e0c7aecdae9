package trust

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	emailpkg "github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/ledger"
	"github.com/forense-lab/peritia-trust/internal/security/password"
	"github.com/forense-lab/peritia-trust/internal/vault"
)

// --- fakes ---------------------------------------------------------------

type fakeTokens struct {
	byID   map[string]*repository.SingleUseToken
	nextID int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byID: map[string]*repository.SingleUseToken{}}
}

func (f *fakeTokens) Replace(_ context.Context, in repository.ReplaceTokenInput) (*repository.SingleUseToken, error) {
	for id, t := range f.byID {
		if t.Identifier == in.Identifier && t.Kind == in.Kind {
			delete(f.byID, id)
		}
	}
	f.nextID++
	t := &repository.SingleUseToken{
		ID:         fmt.Sprintf("tok-%d", f.nextID),
		Identifier: in.Identifier,
		Kind:       in.Kind,
		TokenHash:  in.TokenHash,
		Payload:    in.Payload,
		ExpiresAt:  time.Now().Add(in.TTL),
		CreatedAt:  time.Now(),
	}
	f.byID[t.ID] = t
	return t, nil
}

func (f *fakeTokens) GetByHash(_ context.Context, hash string) (*repository.SingleUseToken, error) {
	for _, t := range f.byID {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTokens) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeTokens) DeleteByIdentifier(_ context.Context, identifier string) error {
	for id, t := range f.byID {
		if t.Identifier == identifier {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for id, t := range f.byID {
		if t.Expired(now) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

// expire fuerza el vencimiento de todos los tokens vivos.
func (f *fakeTokens) expire() {
	for _, t := range f.byID {
		t.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

type fakeUsers struct {
	byID map[string]*repository.User
}

func newFakeUsers(users ...*repository.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*repository.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*repository.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) EmailTaken(_ context.Context, email, excludeUserID string) (bool, error) {
	for _, u := range f.byID {
		if u.Email == email && u.ID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, userID string, at time.Time) error {
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.EmailVerifiedAt == nil {
		t := at
		u.EmailVerifiedAt = &t
	}
	return nil
}

func (f *fakeUsers) UpdateEmail(_ context.Context, userID, newEmail string) error {
	for _, u := range f.byID {
		if u.Email == newEmail && u.ID != userID {
			return repository.ErrEmailTaken
		}
	}
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = newEmail
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, userID string) error {
	delete(f.byID, userID)
	return nil
}

type fakeLedger struct {
	revoked map[string]bool
	down    bool
}

func newFakeLedger() *fakeLedger { return &fakeLedger{revoked: map[string]bool{}} }

func (f *fakeLedger) Revoke(_ context.Context, ids ...string) error {
	if f.down {
		return ledger.ErrUnavailable
	}
	for _, id := range ids {
		f.revoked[id] = true
	}
	return nil
}

func (f *fakeLedger) IsRevoked(_ context.Context, id string) (bool, error) {
	if f.down {
		return false, ledger.ErrUnavailable
	}
	return f.revoked[id], nil
}

func (f *fakeLedger) Sync(_ context.Context, ids []string) error {
	f.revoked = map[string]bool{}
	for _, id := range ids {
		f.revoked[id] = true
	}
	return nil
}

func (f *fakeLedger) Count(_ context.Context) (int64, error) {
	return int64(len(f.revoked)), nil
}

func (f *fakeLedger) HealthCheck(_ context.Context) error { return nil }

type fakeSessions struct {
	byUser map[string][]string
}

func (f *fakeSessions) ActiveSessionIDs(_ context.Context, userID string) ([]string, error) {
	return f.byUser[userID], nil
}

type fakeMailer struct {
	sent []emailpkg.Message
}

func (f *fakeMailer) Dispatch(_ context.Context, msg emailpkg.Message) {
	f.sent = append(f.sent, msg)
}

func (f *fakeMailer) last(t *testing.T) emailpkg.Message {
	t.Helper()
	require.NotEmpty(t, f.sent, "se esperaba al menos un mail despachado")
	return f.sent[len(f.sent)-1]
}

type fakeCodes struct {
	purged []string
}

func (f *fakeCodes) ReplaceAll(_ context.Context, _ string, _ []string) error { return nil }
func (f *fakeCodes) ListUnused(_ context.Context, _ string) ([]repository.RecoveryCode, error) {
	return nil, nil
}
func (f *fakeCodes) MarkUsed(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}
func (f *fakeCodes) Counts(_ context.Context, _ string) (int, int, error) { return 0, 0, nil }
func (f *fakeCodes) DeleteAll(_ context.Context, userID string) error {
	f.purged = append(f.purged, userID)
	return nil
}

// --- harness -------------------------------------------------------------

type harness struct {
	svc      *Service
	tokens   *fakeTokens
	users    *fakeUsers
	ledger   *fakeLedger
	sessions *fakeSessions
	mailer   *fakeMailer
	codes    *fakeCodes
}

func newHarness(users ...*repository.User) *harness {
	h := &harness{
		tokens:   newFakeTokens(),
		users:    newFakeUsers(users...),
		ledger:   newFakeLedger(),
		sessions: &fakeSessions{byUser: map[string][]string{}},
		mailer:   &fakeMailer{},
		codes:    &fakeCodes{},
	}
	h.svc = NewService(Deps{
		Issuer:   NewIssuer(h.tokens),
		Users:    h.users,
		Vault:    vault.New(h.codes),
		Ledger:   h.ledger,
		Email:    h.mailer,
		Sessions: h.sessions,
	})
	return h
}

func verifiedAt(t time.Time) *time.Time { return &t }

func unverifiedUser() *repository.User {
	return &repository.User{ID: "user-1", Email: "ana@example.com", PasswordHash: "x"}
}

func verifiedUser() *repository.User {
	return &repository.User{
		ID: "user-1", Email: "ana@example.com", PasswordHash: "x",
		EmailVerifiedAt: verifiedAt(time.Now().Add(-time.Hour)),
	}
}

// --- verificación de email ----------------------------------------------

func TestRequestEmailVerificationUnknownEmailIsSilent(t *testing.T) {
	h := newHarness()
	err := h.svc.RequestEmailVerification(context.Background(), "nadie@example.com")
	require.NoError(t, err, "email desconocido es éxito silencioso")
	require.Empty(t, h.mailer.sent, "no debe despacharse ningún mail")
	require.Empty(t, h.tokens.byID, "no debe emitirse ningún token")
}

func TestRequestEmailVerificationInvalidInput(t *testing.T) {
	h := newHarness()
	for _, bad := range []string{"", "no-arroba", "a@b", "a @b.com"} {
		err := h.svc.RequestEmailVerification(context.Background(), bad)
		require.ErrorIs(t, err, ErrValidation, "input %q", bad)
	}
}

func TestRequestEmailVerificationAlreadyVerified(t *testing.T) {
	h := newHarness(verifiedUser())
	err := h.svc.RequestEmailVerification(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Empty(t, h.mailer.sent, "una cuenta ya verificada no recibe mail")
}

func TestEmailVerificationRoundTrip(t *testing.T) {
	h := newHarness(unverifiedUser())
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailVerification(ctx, "Ana@Example.com "))
	msg := h.mailer.last(t)
	require.Equal(t, "ana@example.com", msg.To)
	require.Equal(t, emailpkg.KindVerification, msg.Kind)
	require.NotEmpty(t, msg.Token)

	require.NoError(t, h.svc.ConfirmEmailVerification(ctx, msg.Token))
	u, err := h.users.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, u.EmailVerified())

	// Uso único: el mismo token otra vez ya no existe
	require.ErrorIs(t, h.svc.ConfirmEmailVerification(ctx, msg.Token), ErrNotFound)
}

func TestConfirmEmailVerificationExpired(t *testing.T) {
	h := newHarness(unverifiedUser())
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailVerification(ctx, "ana@example.com"))
	msg := h.mailer.last(t)
	h.tokens.expire()

	// La primera vez reporta vencido y purga; la segunda ya no existe
	require.ErrorIs(t, h.svc.ConfirmEmailVerification(ctx, msg.Token), ErrExpired)
	require.ErrorIs(t, h.svc.ConfirmEmailVerification(ctx, msg.Token), ErrNotFound)
}

func TestConfirmEmailVerificationIdentityGone(t *testing.T) {
	h := newHarness(unverifiedUser())
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailVerification(ctx, "ana@example.com"))
	msg := h.mailer.last(t)
	require.NoError(t, h.users.Delete(ctx, "user-1"))

	require.ErrorIs(t, h.svc.ConfirmEmailVerification(ctx, msg.Token), ErrIdentityGone)
	require.Empty(t, h.tokens.byID, "el token huérfano se purga")
}

func TestConfirmEmptyToken(t *testing.T) {
	h := newHarness()
	require.ErrorIs(t, h.svc.ConfirmEmailVerification(context.Background(), ""), ErrValidation)
}

func TestReissueInvalidatesPreviousToken(t *testing.T) {
	h := newHarness(unverifiedUser())
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailVerification(ctx, "ana@example.com"))
	first := h.mailer.last(t).Token
	require.NoError(t, h.svc.RequestEmailVerification(ctx, "ana@example.com"))
	second := h.mailer.last(t).Token
	require.NotEqual(t, first, second)

	require.ErrorIs(t, h.svc.ConfirmEmailVerification(ctx, first), ErrNotFound)
	require.NoError(t, h.svc.ConfirmEmailVerification(ctx, second))
}

// --- cambio de email ------------------------------------------------------

func TestRequestEmailChangeValidations(t *testing.T) {
	other := &repository.User{ID: "user-2", Email: "beto@example.com"}
	h := newHarness(verifiedUser(), other)
	ctx := context.Background()

	require.ErrorIs(t, h.svc.RequestEmailChange(ctx, "user-1", "no-es-email"), ErrValidation)
	require.ErrorIs(t, h.svc.RequestEmailChange(ctx, "user-1", "ana@example.com"), ErrValidation,
		"cambiar al email actual no tiene sentido")
	require.ErrorIs(t, h.svc.RequestEmailChange(ctx, "user-1", "beto@example.com"), ErrConflict)
	require.ErrorIs(t, h.svc.RequestEmailChange(ctx, "ghost", "nueva@example.com"), ErrIdentityGone)
}

func TestEmailChangeRoundTrip(t *testing.T) {
	h := newHarness(verifiedUser())
	h.sessions.byUser["user-1"] = []string{"jti-a", "jti-b"}
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailChange(ctx, "user-1", "Nueva@Example.com"))
	msg := h.mailer.last(t)
	require.Equal(t, "nueva@example.com", msg.To, "el token viaja a la dirección NUEVA")
	require.Equal(t, emailpkg.KindEmailChange, msg.Kind)

	require.NoError(t, h.svc.ConfirmEmailChange(ctx, msg.Token))

	u, err := h.users.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "nueva@example.com", u.Email)

	// Todas las sesiones previas quedan revocadas
	for _, jti := range []string{"jti-a", "jti-b"} {
		ok, err := h.ledger.IsRevoked(ctx, jti)
		require.NoError(t, err)
		require.True(t, ok, "sesión %s debería estar revocada", jti)
	}
	require.Empty(t, h.tokens.byID, "el token se descarta tras el éxito")
}

func TestEmailChangeConflictKeepsTokenAlive(t *testing.T) {
	other := &repository.User{ID: "user-2", Email: "beto@example.com"}
	h := newHarness(verifiedUser(), other)
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailChange(ctx, "user-1", "libre@example.com"))
	msg := h.mailer.last(t)

	// Otra cuenta reclama la dirección entre emisión y consumo
	require.NoError(t, h.users.UpdateEmail(ctx, "user-2", "libre@example.com"))
	require.ErrorIs(t, h.svc.ConfirmEmailChange(ctx, msg.Token), ErrConflict)
	require.Len(t, h.tokens.byID, 1, "el token sobrevive al conflicto")

	// El reclamo se libera: el mismo token todavía sirve
	require.NoError(t, h.users.UpdateEmail(ctx, "user-2", "beto@example.com"))
	require.NoError(t, h.svc.ConfirmEmailChange(ctx, msg.Token))
	u, _ := h.users.GetByID(ctx, "user-1")
	require.Equal(t, "libre@example.com", u.Email)
}

func TestEmailChangeAbortsWhenLedgerDown(t *testing.T) {
	h := newHarness(verifiedUser())
	h.sessions.byUser["user-1"] = []string{"jti-a"}
	ctx := context.Background()

	require.NoError(t, h.svc.RequestEmailChange(ctx, "user-1", "nueva@example.com"))
	msg := h.mailer.last(t)

	h.ledger.down = true
	err := h.svc.ConfirmEmailChange(ctx, msg.Token)
	require.ErrorIs(t, err, ledger.ErrUnavailable)

	// La identidad no mutó y el token sigue vivo para reintentar
	u, _ := h.users.GetByID(ctx, "user-1")
	require.Equal(t, "ana@example.com", u.Email)
	require.Len(t, h.tokens.byID, 1)

	h.ledger.down = false
	require.NoError(t, h.svc.ConfirmEmailChange(ctx, msg.Token))
}

// --- reset de contraseña --------------------------------------------------

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.svc.RequestPasswordReset(context.Background(), "nadie@example.com"))
	require.Empty(t, h.mailer.sent)
}

func TestPasswordResetRoundTrip(t *testing.T) {
	h := newHarness(verifiedUser())
	h.sessions.byUser["user-1"] = []string{"jti-a"}
	ctx := context.Background()

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ana@example.com"))
	msg := h.mailer.last(t)
	require.Equal(t, emailpkg.KindPasswordReset, msg.Kind)

	require.ErrorIs(t, h.svc.ConfirmPasswordReset(ctx, msg.Token, "corta"), ErrValidation,
		"contraseña bajo el mínimo")

	require.NoError(t, h.svc.ConfirmPasswordReset(ctx, msg.Token, "nueva-contraseña-larga"))

	u, _ := h.users.GetByID(ctx, "user-1")
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"), "se persiste hash, no plaintext")
	require.True(t, password.Verify("nueva-contraseña-larga", u.PasswordHash))

	ok, _ := h.ledger.IsRevoked(ctx, "jti-a")
	require.True(t, ok, "el reset revoca todas las sesiones")
	require.ErrorIs(t, h.svc.ConfirmPasswordReset(ctx, msg.Token, "nueva-contraseña-larga"), ErrNotFound)
}

func TestPasswordResetAbortsWhenLedgerDown(t *testing.T) {
	h := newHarness(verifiedUser())
	h.sessions.byUser["user-1"] = []string{"jti-a"}
	ctx := context.Background()

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ana@example.com"))
	msg := h.mailer.last(t)

	h.ledger.down = true
	require.ErrorIs(t, h.svc.ConfirmPasswordReset(ctx, msg.Token, "nueva-contraseña-larga"), ledger.ErrUnavailable)

	u, _ := h.users.GetByID(ctx, "user-1")
	require.Equal(t, "x", u.PasswordHash, "la contraseña no muta si no se pudo revocar")
}

// --- baja de cuenta -------------------------------------------------------

func TestAccountDeletionRoundTrip(t *testing.T) {
	h := newHarness(verifiedUser())
	h.sessions.byUser["user-1"] = []string{"jti-a"}
	ctx := context.Background()

	require.NoError(t, h.svc.RequestAccountDeletion(ctx, "user-1"))
	msg := h.mailer.last(t)
	require.Equal(t, "ana@example.com", msg.To, "la baja se confirma desde el email ACTUAL")
	require.Equal(t, emailpkg.KindAccountDeletion, msg.Kind)

	// Dejar otro token colgando para verificar el purge por identifier
	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ana@example.com"))

	require.NoError(t, h.svc.ConfirmAccountDeletion(ctx, msg.Token))

	_, err := h.users.GetByID(ctx, "user-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	ok, _ := h.ledger.IsRevoked(ctx, "jti-a")
	require.True(t, ok)
	require.Contains(t, h.codes.purged, "user-1", "los recovery codes se purgan con la cuenta")
	require.Empty(t, h.tokens.byID, "no quedan tokens colgando de la identidad")
}

func TestAccountDeletionAlreadyGoneIsBenign(t *testing.T) {
	h := newHarness(verifiedUser())
	ctx := context.Background()

	require.NoError(t, h.svc.RequestAccountDeletion(ctx, "user-1"))
	msg := h.mailer.last(t)
	require.NoError(t, h.users.Delete(ctx, "user-1"))

	require.NoError(t, h.svc.ConfirmAccountDeletion(ctx, msg.Token),
		"la cuenta ya no existe: nada que hacer, no es error")
	require.Empty(t, h.tokens.byID)
}

func TestRequestAccountDeletionUnknownUser(t *testing.T) {
	h := newHarness()
	require.ErrorIs(t, h.svc.RequestAccountDeletion(context.Background(), "ghost"), ErrIdentityGone)
}
