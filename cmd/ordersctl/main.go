package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/dukerupert/storefront/internal"
	"github.com/dukerupert/storefront/internal/auth"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "ordersctl",
		Usage: "operate the storefront order service",
		Commands: []*cli.Command{
			migrateCommand(),
			tokenCommand(),
			productCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withDB(func(c *cli.Context, db *sql.DB) error {
					applied, err := internal.RunMigrations(c.Context, db)
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Println("schema is up to date")
						return nil
					}
					for _, v := range applied {
						fmt.Printf("applied %05d\n", v)
					}
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "roll back the most recent migration",
				Action: withDB(func(c *cli.Context, db *sql.DB) error {
					v, err := internal.RollbackMigration(c.Context, db)
					if err != nil {
						return err
					}
					fmt.Printf("rolled back %05d\n", v)
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "show applied and pending migrations",
				Action: withDB(func(c *cli.Context, db *sql.DB) error {
					statuses, err := internal.MigrationStatus(c.Context, db)
					if err != nil {
						return err
					}
					for _, st := range statuses {
						applied := "pending"
						if st.State == goose.StateApplied {
							applied = st.AppliedAt.Format(time.RFC3339)
						}
						fmt.Printf("%-40s %s\n", st.Source.Path, applied)
					}
					return nil
				}),
			},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue and revoke admin bearer tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "print a new admin token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Usage: "who the token is for, e.g. an email", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to JWT_TTL)"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := internal.NewConfig()
					if err != nil {
						return err
					}
					// Issuing never consults revocations.
					tokens, err := newTokenManager(cfg, auth.NewMemoryRevocationStore())
					if err != nil {
						return err
					}

					token, claims, err := tokens.Issue(c.String("subject"), auth.RoleAdmin, c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "token %s for %s expires %s\n", claims.ID, claims.Subject, claims.ExpiresAt.Format(time.RFC3339))
					fmt.Println(token)
					return nil
				},
			},
			{
				Name:  "revoke",
				Usage: "revoke a token id across all instances (requires NATS_URL)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "token id (jti) to revoke", Required: true},
					&cli.DurationFlag{Name: "for", Usage: "how long to keep the revocation (defaults to JWT_TTL)"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := internal.NewConfig()
					if err != nil {
						return err
					}
					if cfg.NATS.URL == "" {
						return cli.Exit("NATS_URL is not set; revocations would not reach running servers", 1)
					}

					logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)
					nc, err := events.Connect(cfg.NATS.URL, "ordersctl", logger)
					if err != nil {
						return err
					}
					defer nc.Close()

					tokens, err := natsTokenManager(c.Context, cfg, nc)
					if err != nil {
						return err
					}

					ttl := c.Duration("for")
					if ttl <= 0 {
						ttl = cfg.Auth.TokenTTL
					}
					until := time.Now().Add(ttl)
					if err := tokens.RevokeID(c.Context, c.String("id"), until); err != nil {
						return err
					}
					fmt.Printf("token %s revoked until %s\n", c.String("id"), until.Format(time.RFC3339))
					return nil
				},
			},
		},
	}
}

func productCommand() *cli.Command {
	return &cli.Command{
		Name:  "product",
		Usage: "manage products",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "add a product with opening stock",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "price", Usage: "unit price, e.g. 12.50", Required: true},
					&cli.IntFlag{Name: "stock", Value: 0},
					&cli.StringFlag{Name: "image", Usage: "image URL"},
				},
				Action: func(c *cli.Context) error {
					price, err := decimal.NewFromString(c.String("price"))
					if err != nil {
						return cli.Exit(fmt.Sprintf("invalid price %q", c.String("price")), 1)
					}
					cents, err := domain.ParseCents(price)
					if err != nil {
						return cli.Exit(domain.ErrorMessage(err), 1)
					}

					cfg, err := internal.NewConfig()
					if err != nil {
						return err
					}
					logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

					pool, err := pgxpool.New(c.Context, cfg.DatabaseUrl)
					if err != nil {
						return fmt.Errorf("failed to create connection pool: %w", err)
					}
					defer pool.Close()

					products := service.NewProductService(repository.NewStore(pool), logger)
					product, err := products.CreateProduct(c.Context, service.CreateProductParams{
						Name:     c.String("name"),
						ImageURL: c.String("image"),
						Price:    cents,
						Stock:    c.Int("stock"),
					})
					if err != nil {
						if fields := domain.GetValidationFields(err); len(fields) > 0 {
							for field, msg := range fields {
								fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
							}
							return cli.Exit("product not created", 1)
						}
						return err
					}
					fmt.Printf("%s\t%s\t%s\t%d\n", product.ID, product.Name, product.Price, product.Stock)
					return nil
				},
			},
		},
	}
}

// withDB opens a database/sql handle for goose.
func withDB(fn func(c *cli.Context, db *sql.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := internal.NewConfig()
		if err != nil {
			return err
		}

		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(c.Context); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return fn(c, db)
	}
}

func newTokenManager(cfg *internal.Config, store auth.RevocationStore) (*auth.TokenManager, error) {
	return auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	}, store)
}

func natsTokenManager(ctx context.Context, cfg *internal.Config, nc *nats.Conn) (*auth.TokenManager, error) {
	store, err := auth.NewNATSRevocationStore(ctx, nc, cfg.NATS.RevocationBucket, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open revocation bucket: %w", err)
	}
	return newTokenManager(cfg, store)
}
