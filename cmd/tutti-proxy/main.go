// Command tutti-proxy serves tutti.ch listing searches over HTTP and runs
// one-shot searches from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/tutti-client/pkg/client"
	"github.com/Sternrassler/tutti-client/pkg/history"
	"github.com/Sternrassler/tutti-client/pkg/listing"
	"github.com/Sternrassler/tutti-client/pkg/logging"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tutti-proxy",
		Short:        "Search tutti.ch listings",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search proxy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAndSetup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newSearchCmd() *cobra.Command {
	var sortMode string
	var maxPages int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fetch every listing for a query and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndSetup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Tutti.MaxPages = maxPages
			}

			c, err := client.New(cfg.ClientConfig())
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			defer c.Close()

			listings, err := c.FetchListings(cmd.Context(), args[0], cfg.Pagination())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(listing.Sorted(listings, listing.ParseSortMode(sortMode)))
		},
	}
	cmd.Flags().StringVar(&sortMode, "sort", string(listing.SortDefault), "sort mode: default, title, price, seller")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap on pages fetched (0 = all)")
	return cmd
}

func loadAndSetup() (Config, error) {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	return cfg, nil
}

func serve(ctx context.Context, cfg Config) error {
	clientCfg := cfg.ClientConfig()

	var hist HistoryReader
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		store := history.NewStore(redisClient, history.Config{Limit: cfg.Redis.HistoryLimit})
		clientCfg.History = store
		hist = store
	}

	tuttiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer tuttiClient.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           NewServer(tuttiClient, hist, cfg.Pagination()).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_url", cfg.Tutti.BaseURL).
			Bool("history", cfg.Redis.Enabled).
			Msg("Starting tutti proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down tutti proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
