// Command credlink-audit prints recent credential access records from
// the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/credlink/credlink/audit"
	"github.com/credlink/credlink/config"
	"github.com/credlink/credlink/logging"
	"github.com/credlink/credlink/store"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	limit := flag.Int("n", 50, "maximum number of records to print, newest first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Debug("credlink-audit starting", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	records, err := audit.New(st, logger).Recent(ctx, *limit)
	if err != nil {
		return fmt.Errorf("reading audit trail: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("no audit records")
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "FAILED"
		}

		line := fmt.Sprintf("%s  %-8s %-10s %s",
			rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Operation, rec.Subject, status)

		if rec.Platform != "" {
			line += "  platform=" + rec.Platform
		}

		if rec.Error != "" {
			line += "  error=" + rec.Error
		}

		fmt.Println(line)
	}

	return nil
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return store.OpenRedis(ctx, cfg.RedisConfig())
	default:
		return store.OpenBolt(cfg.BoltPath)
	}
}
