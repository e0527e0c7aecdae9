package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/security/recovery"
)

// fakeCodeRepo implementa el repositorio en memoria con la misma
// semántica condicional de MarkUsed que la versión de Postgres.
type fakeCodeRepo struct {
	byUser map[string][]*repository.RecoveryCode
	nextID int
	fail   error
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{byUser: map[string][]*repository.RecoveryCode{}}
}

func (r *fakeCodeRepo) ReplaceAll(_ context.Context, userID string, hashes []string) error {
	if r.fail != nil {
		return r.fail
	}
	set := make([]*repository.RecoveryCode, len(hashes))
	for i, h := range hashes {
		r.nextID++
		set[i] = &repository.RecoveryCode{
			ID:        fmt.Sprintf("code-%d", r.nextID),
			UserID:    userID,
			CodeHash:  h,
			CreatedAt: time.Now(),
		}
	}
	r.byUser[userID] = set
	return nil
}

func (r *fakeCodeRepo) ListUnused(_ context.Context, userID string) ([]repository.RecoveryCode, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	var out []repository.RecoveryCode
	for _, c := range r.byUser[userID] {
		if c.UsedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCodeRepo) MarkUsed(_ context.Context, codeID string, at time.Time) (bool, error) {
	if r.fail != nil {
		return false, r.fail
	}
	for _, set := range r.byUser {
		for _, c := range set {
			if c.ID == codeID && c.UsedAt == nil {
				t := at
				c.UsedAt = &t
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeCodeRepo) Counts(_ context.Context, userID string) (int, int, error) {
	if r.fail != nil {
		return 0, 0, r.fail
	}
	total, used := 0, 0
	for _, c := range r.byUser[userID] {
		total++
		if c.UsedAt != nil {
			used++
		}
	}
	return total, used, nil
}

func (r *fakeCodeRepo) DeleteAll(_ context.Context, userID string) error {
	if r.fail != nil {
		return r.fail
	}
	delete(r.byUser, userID)
	return nil
}

func TestRegenerateReturnsDisplayCodes(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	codes, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(codes) != recovery.SetSize {
		t.Fatalf("len(codes) = %d, esperaba %d", len(codes), recovery.SetSize)
	}
	for _, c := range codes {
		if len(c) != recovery.CodeLen+1 || !strings.Contains(c, "-") {
			t.Fatalf("code de display mal formateado: %q", c)
		}
	}
	// Solo quedan hashes, nunca el plaintext
	for _, stored := range repo.byUser["user-1"] {
		if !strings.HasPrefix(stored.CodeHash, "$argon2id$") {
			t.Fatalf("se persistió algo que no es un hash argon2id: %q", stored.CodeHash)
		}
		for _, c := range codes {
			if stored.CodeHash == recovery.Normalize(c) {
				t.Fatal("el plaintext no puede persistirse")
			}
		}
	}
}

func TestVerifyConsumesCodeOnce(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	codes, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	ok, err := v.Verify(ctx, "user-1", codes[0])
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("un code recién generado debe verificar")
	}

	// El mismo code por segunda vez ya no existe para Verify
	ok, err = v.Verify(ctx, "user-1", codes[0])
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("un code consumido no puede verificar de nuevo")
	}

	// El resto del set sigue vivo
	ok, err = v.Verify(ctx, "user-1", codes[1])
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("consumir un code no debe afectar a los demás")
	}
}

func TestVerifyAcceptsSloppyInput(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	codes, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	sloppy := " " + strings.ToLower(codes[0]) + " "
	ok, err := v.Verify(ctx, "user-1", sloppy)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("minúsculas, guión y espacios deben normalizarse")
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	v := New(newFakeCodeRepo())
	_, err := v.Verify(context.Background(), "user-1", "abc")
	if !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("esperaba ErrMalformedCode, fue %v", err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	if _, err := v.Regenerate(ctx, "user-1"); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	ok, err := v.Verify(ctx, "user-1", "ZZZZ-ZZZZ")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("un code inventado no puede verificar")
	}
}

func TestRegenerateInvalidatesPreviousSet(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	old, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	fresh, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	if ok, _ := v.Verify(ctx, "user-1", old[0]); ok {
		t.Fatal("el set previo queda inválido tras regenerar")
	}
	if ok, _ := v.Verify(ctx, "user-1", fresh[0]); !ok {
		t.Fatal("el set nuevo debe verificar")
	}
}

func TestStatusFor(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	// Sin codes
	st, err := v.StatusFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if st.HasCodes || st.Total != 0 || st.Unused != 0 {
		t.Fatalf("estado inesperado sin codes: %+v", st)
	}
	for i, on := range st.CodeStatus {
		if on {
			t.Fatalf("CodeStatus[%d] = true sin codes", i)
		}
	}

	codes, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if ok, _ := v.Verify(ctx, "user-1", codes[i]); !ok {
			t.Fatalf("Verify del code %d falló", i)
		}
	}

	st, err = v.StatusFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if st.Total != recovery.SetSize || st.Used != 3 || st.Unused != recovery.SetSize-3 {
		t.Fatalf("conteos inesperados: %+v", st)
	}
	if !st.HasCodes {
		t.Fatal("HasCodes debería ser true")
	}
	for i, on := range st.CodeStatus {
		want := i < st.Unused
		if on != want {
			t.Fatalf("CodeStatus[%d] = %v, esperaba %v", i, on, want)
		}
	}
}

func TestStatusForDisplayCap(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	// Set chico: solo los primeros N slots encendidos
	if err := repo.ReplaceAll(ctx, "user-1", []string{"h1", "h2", "h3"}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	st, err := v.StatusFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if st.Unused != 3 {
		t.Fatalf("Unused = %d, esperaba 3", st.Unused)
	}
	for i, on := range st.CodeStatus {
		if want := i < 3; on != want {
			t.Fatalf("CodeStatus[%d] = %v, esperaba %v", i, on, want)
		}
	}

	// Set sobredimensionado (solo alcanzable salteando Regenerate): el
	// array de display no crece más allá de los 16 slots
	hashes := make([]string, 20)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("h%d", i)
	}
	if err := repo.ReplaceAll(ctx, "user-1", hashes); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	st, err = v.StatusFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if st.Total != 20 || st.Unused != 20 {
		t.Fatalf("conteos inesperados: %+v", st)
	}
	if len(st.CodeStatus) != recovery.SetSize {
		t.Fatalf("CodeStatus tiene %d slots", len(st.CodeStatus))
	}
	for i, on := range st.CodeStatus {
		if !on {
			t.Fatalf("CodeStatus[%d] debería estar encendido con 20 sin usar", i)
		}
	}
}

func TestPurge(t *testing.T) {
	repo := newFakeCodeRepo()
	v := New(repo)
	ctx := context.Background()

	codes, err := v.Regenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if err := v.Purge(ctx, "user-1"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if ok, _ := v.Verify(ctx, "user-1", codes[0]); ok {
		t.Fatal("tras el purge no queda nada que verificar")
	}
	st, _ := v.StatusFor(ctx, "user-1")
	if st.HasCodes {
		t.Fatal("HasCodes debería ser false tras el purge")
	}
}
