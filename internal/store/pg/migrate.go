package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// migrationLockID genera el ID para pg_advisory_lock. Fijo por servicio:
// dos instancias arrancando a la vez no corren migraciones en paralelo.
func migrationLockID() int64 {
	h := sha256.Sum256([]byte("peritia_trust_migration"))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// Migrate ejecuta todos los *_up.sql del FS embebido (orden lexicográfico)
// bajo advisory lock. Los scripts son idempotentes (IF NOT EXISTS), así
// que no llevamos tabla de versiones. Devuelve cuántos scripts aplicó.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	log := logger.Named("pg.migrate")
	lockID := migrationLockID()

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var acquired bool
	if err := s.pool.QueryRow(lockCtx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		log.Info("migration lock held by another process, waiting")
		if _, err := s.pool.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
			return 0, fmt.Errorf("wait for migration lock: %w", err)
		}
	}
	defer func() {
		if _, err := s.pool.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			log.Warn("failed to release migration lock", logger.Err(err))
		}
	}()

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		sql, err := fs.ReadFile(fsys, f)
		if err != nil {
			return applied, err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("migration %s: %w", f, err)
		}
		log.Info("migration applied", zap.String("file", f))
		applied++
	}
	return applied, nil
}
