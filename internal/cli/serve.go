package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/textcritica/collate/internal/api"
	"github.com/textcritica/collate/pkg/cache"
	"github.com/textcritica/collate/pkg/pipeline"
	"github.com/textcritica/collate/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr     string
	redis    string // Redis address for the shared cache (file cache if empty)
	mongoURI string // MongoDB URI for the project store (memory if empty)
	mongoDB  string
	noCache  bool
}

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:    ":8080",
		mongoDB: "collate",
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collation HTTP API",
		Long: `Run the HTTP API for hosted collation.

Without flags the server keeps projects in memory and caches results on
disk, suitable for a single process. For multi-replica deployments give
--redis for a shared cache and --mongo for durable project storage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.redis, "redis", "", "Redis address for the result cache (host:port)")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI for the project store")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", opts.mongoDB, "MongoDB database name")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable result caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	resultCache, err := c.serveCache(ctx, opts)
	if err != nil {
		return err
	}

	projects, err := c.serveStore(ctx, opts)
	if err != nil {
		return err
	}
	defer projects.Close(context.Background())

	runner := pipeline.NewRunner(resultCache, nil, c.Logger)
	defer runner.Close()

	handler := api.New(api.Config{
		Store:  projects,
		Runner: runner,
		Logger: c.Logger,
	})

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("serving collation API", "addr", opts.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (c *CLI) serveCache(ctx context.Context, opts serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redis != "" {
		rc, err := cache.NewRedisCache(ctx, opts.redis, "", 0)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		c.Logger.Info("using redis cache", "addr", opts.redis)
		return rc, nil
	}
	return newCache(false)
}

func (c *CLI) serveStore(ctx context.Context, opts serveOpts) (store.Store, error) {
	if opts.mongoURI != "" {
		ms, err := store.NewMongoStore(ctx, opts.mongoURI, opts.mongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo store: %w", err)
		}
		c.Logger.Info("using mongodb project store", "db", opts.mongoDB)
		return ms, nil
	}
	c.Logger.Warn("using in-memory project store; projects are lost on restart")
	return store.NewMemoryStore(), nil
}
