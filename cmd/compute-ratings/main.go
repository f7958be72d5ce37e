// Command compute-ratings rebuilds the precomputed team tables offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/okian/vctrank/internal/app"
	"github.com/okian/vctrank/internal/batch"
	"github.com/okian/vctrank/internal/config"
	"github.com/okian/vctrank/pkg/logger"
)

const defaultTimeout = 10 * time.Minute

func main() {
	var (
		from        = flag.Int("from", 0, "First season to rebuild (default: recompute.first_year)")
		to          = flag.Int("to", 0, "Last season to rebuild (default: current year)")
		driver      = flag.String("driver", "", "Storage driver override: memory, sqlite or postgres")
		dsn         = flag.String("dsn", "", "Storage DSN override")
		seed        = flag.String("seed", "", "JSON seed file loaded before computing")
		concurrency = flag.Int("concurrency", 0, "Scopes computed at once (default: recompute.workers)")
		asJSON      = flag.Bool("json", false, "Print the report as JSON")
		timeout     = flag.Duration("timeout", defaultTimeout, "Overall timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}
	if *seed != "" {
		cfg.Storage.Seed = *seed
	}
	if *concurrency > 0 {
		cfg.Recompute.Workers = *concurrency
	}
	if *from > 0 {
		cfg.Recompute.FirstYear = *from
	}

	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	report, err := run(ctx, cfg, *to, logger.Get())
	if err != nil {
		logger.Get().Error(ctx, "compute failed", logger.Error(err))
		os.Exit(1)
	}
	if err := printReport(os.Stdout, report, *asJSON); err != nil {
		os.Exit(1)
	}
}

// run loads storage, computes every scope from the first year to last and
// saves the tables. A non-positive last means the current year.
func run(ctx context.Context, cfg *config.Config, last int, log logger.Logger) (batch.Report, error) {
	store, err := app.OpenStore(ctx, cfg.Storage, log.Named("store"))
	if err != nil {
		return batch.Report{}, err
	}
	defer store.Close()

	if cfg.Storage.Seed != "" {
		n, err := app.LoadSeedFile(ctx, cfg.Storage.Seed, store)
		if err != nil {
			return batch.Report{}, err
		}
		log.Info(ctx, "seed loaded", logger.Int("matches", n))
	}

	_, provider := app.BuildProvider(cfg, store, time.Now, log)
	if last <= 0 {
		last = provider.CurrentYear()
	}
	if last < cfg.Recompute.FirstYear {
		return batch.Report{}, fmt.Errorf("last season %d before first season %d", last, cfg.Recompute.FirstYear)
	}

	runner := batch.NewRunner(provider, store,
		batch.WithConcurrency(cfg.Recompute.Workers),
		batch.WithLogger(log.Named("batch")),
	)
	return runner.Run(ctx, batch.Scopes(cfg.Recompute.FirstYear, last)...)
}

func printReport(w io.Writer, r batch.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "run %s (%s)\n", r.RunID, r.Took.Round(time.Millisecond))
	fmt.Fprintf(w, "%-8s %6s %10s %8s\n", "scope", "teams", "processed", "skipped")
	for _, t := range r.Tables {
		fmt.Fprintf(w, "%-8s %6d %10d %8d\n", t.Key, t.Rows, t.Processed, t.Skipped)
	}
	return nil
}
