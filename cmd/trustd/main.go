// trustd es el servicio de confianza de cuentas de la plataforma de
// gestión de casos forenses: tokens de un solo uso, recovery codes de
// 2FA, ledger de revocación de sesiones y rate limiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/forense-lab/peritia-trust/internal/config"
	"github.com/forense-lab/peritia-trust/internal/email"
	httpserver "github.com/forense-lab/peritia-trust/internal/http"
	"github.com/forense-lab/peritia-trust/internal/ledger"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/rate"
	"github.com/forense-lab/peritia-trust/internal/store/pg"
	"github.com/forense-lab/peritia-trust/internal/track"
	"github.com/forense-lab/peritia-trust/internal/trust"
	"github.com/forense-lab/peritia-trust/internal/vault"
	migrations "github.com/forense-lab/peritia-trust/migrations/postgres"
)

func main() {
	// .env opcional, para dev
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "trustd",
		Short: "Servicio de confianza de cuentas (tokens, 2FA, revocación, rate limiting)",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("TRUST_CONFIG"), "ruta del YAML de configuración")

	root.AddCommand(
		serveCmd(&cfgPath),
		migrateCmd(&cfgPath),
		cleanupCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "trustd",
	})
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, errors.New("storage.dsn vacío (o TRUST_DSN)")
	}
	return pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxConns:        cfg.Storage.MaxConns,
		MinConns:        cfg.Storage.MinConns,
		ConnMaxLifetime: config.Duration(cfg.Storage.ConnMaxLifetime, 30*time.Minute),
	})
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servicio HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.Named("trustd")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			scopes := rateScopes(cfg)
			ledgerTTL := config.Duration(cfg.Ledger.TTL, ledger.DefaultTTL)
			trackWin := config.Duration(cfg.Track.Window, track.DefaultWindow)

			kvAddr := cfg.KV.Addr
			if cfg.KV.Kind == "memory" {
				// Redis embebido en el proceso: misma semántica, cero
				// infraestructura. Solo sirve para una instancia.
				mr, err := miniredis.Run()
				if err != nil {
					return fmt.Errorf("embedded redis: %w", err)
				}
				defer mr.Close()
				kvAddr = mr.Addr()
				log.Warn("kv kind=memory: estado no compartido entre instancias")
			}
			client := rdb.NewClient(&rdb.Options{Addr: kvAddr, DB: cfg.KV.DB})
			defer client.Close()
			ldg := ledger.NewRedis(client, cfg.KV.Prefix, ledgerTTL)
			throttle := track.NewRedis(client, cfg.KV.Prefix+"track:", trackWin)
			limiter := rate.New(client, cfg.KV.Prefix+"rl:", scopes)

			var dispatcher email.Dispatcher
			if cfg.Email.Driver == "smtp" {
				dispatcher = email.NewSMTP(email.SMTPConfig{
					Host:     cfg.Email.Host,
					Port:     cfg.Email.Port,
					From:     cfg.Email.From,
					User:     cfg.Email.User,
					Pass:     cfg.Email.Pass,
					StartTLS: cfg.Email.StartTLS,
					BaseURL:  cfg.Email.BaseURL,
				})
			} else {
				dispatcher = email.NewLog()
			}

			v := vault.New(store)
			issuer := trust.NewIssuer(store)
			svc := trust.NewService(trust.Deps{
				Issuer:   issuer,
				Users:    store,
				Vault:    v,
				Ledger:   ldg,
				Email:    dispatcher,
				Sessions: store,
				TTLs: trust.TTLs{
					Verify:   config.Duration(cfg.Auth.VerifyTTL, 0),
					Change:   config.Duration(cfg.Auth.ChangeTTL, 0),
					Reset:    config.Duration(cfg.Auth.ResetTTL, 0),
					Deletion: config.Duration(cfg.Auth.DeletionTTL, 0),
				},
			})

			handler := httpserver.New(httpserver.Deps{
				Trust:     svc,
				Vault:     v,
				Ledger:    ldg,
				Limiter:   limiter,
				Throttle:  throttle,
				Activity:  store,
				DB:        store,
				JWTSecret: []byte(cfg.Auth.JWTSecret),
			})

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			janitorEvery := config.Duration(cfg.Janitor.Interval, time.Hour)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening", logger.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				// Janitor de tokens vencidos
				t := time.NewTicker(janitorEvery)
				defer t.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-t.C:
						n, err := issuer.PurgeExpired(gctx)
						if err != nil {
							log.Warn("janitor sweep failed", logger.Err(err))
							continue
						}
						if n > 0 {
							log.Info("expired tokens purged", logger.Count(n))
						}
					}
				}
			})
			g.Go(func() error {
				<-gctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			})

			return g.Wait()
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de esquema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			n, err := store.Migrate(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			logger.L().Info("migrations done", logger.Count(n))
			return nil
		},
	}
}

func cleanupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Borra tokens vencidos (one-shot)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			n, err := trust.NewIssuer(store).PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			logger.L().Info("expired tokens purged", logger.Count(n))
			return nil
		},
	}
}

func rateScopes(cfg *config.Config) map[rate.Scope]rate.ScopeConfig {
	scopes := rate.DefaultScopes()
	apply := func(s rate.Scope, c config.ScopeLimit) {
		sc := scopes[s]
		if c.Limit > 0 {
			sc.Limit = c.Limit
		}
		if d := config.Duration(c.Window, 0); d > 0 {
			sc.Window = d
		}
		sc.FailOpen = c.FailOpen
		scopes[s] = sc
	}
	apply(rate.ScopePublic, cfg.Rate.Public)
	apply(rate.ScopePrivate, cfg.Rate.Private)
	apply(rate.ScopeNotification, cfg.Rate.Notification)
	return scopes
}
