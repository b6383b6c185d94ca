package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/legaldocflow/internal/analysisapi"
	"github.com/Lllllllleong/legaldocflow/internal/app"
	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/session"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "legaldocflow",
		Usage: "Legal document ingestion pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve uploads, the documents API and the status stream, and sweep stale documents",
				Action: serveCommand,
			},
			{
				Name:   "sweep",
				Usage:  "Fail documents stuck in processing for longer than STALE_AFTER",
				Action: sweepCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Create the Postgres documents table, indexes and change trigger",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Postgres connection string",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
				},
			},
			{
				Name:   "analyze",
				Usage:  "Send a document to the analysis API and print the result",
				Action: analyzeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path of the document to analyze",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Bearer token of the signed-in user",
						EnvVars:  []string{"ANALYSIS_API_TOKEN"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "api-url",
						Usage:    "Base URL of the analysis API",
						EnvVars:  []string{"ANALYSIS_API_URL"},
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Request timeout",
						Value: 2 * time.Minute,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end on shutdown so open status streams close.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening.", "addr", srv.Addr, "recordBackend", cfg.RecordBackend, "blobBackend", cfg.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Sweeper.Run(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), a.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func sweepCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := sweepStale(c.Context, st, cfg.StaleAfter)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "failed %d stale document(s)\n", n)
	return nil
}

func sweepStale(ctx context.Context, st store.Store, staleAfter time.Duration) (int, error) {
	sweeper, err := services.NewSweeper(st, staleAfter, slog.Default())
	if err != nil {
		return 0, err
	}
	return sweeper.SweepOnce(ctx)
}

func migrateCommand(c *cli.Context) error {
	pool, err := store.ConnectPostgres(c.Context, c.String("database-url"))
	if err != nil {
		return err
	}
	st, err := store.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}
	defer st.Close()

	if err := st.Migrate(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema is up to date")
	return nil
}

func analyzeCommand(c *cli.Context) error {
	// An empty ANALYSIS_API_* variable satisfies Required, so check values too.
	token := strings.TrimSpace(strings.TrimPrefix(c.String("token"), "Bearer "))
	if token == "" {
		return errors.New("a non-empty --token is required")
	}
	apiURL := strings.TrimSpace(c.String("api-url"))
	if apiURL == "" {
		return errors.New("a non-empty --api-url is required")
	}

	path := c.String("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	client, err := analysisapi.NewClient(apiURL, &http.Client{Timeout: c.Duration("timeout")})
	if err != nil {
		return err
	}
	sess := &session.Session{Token: token}

	resp, err := client.Upload(c.Context, sess, baseName(path), f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
