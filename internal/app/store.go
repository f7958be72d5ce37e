package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/adapters/repository/memory"
	"github.com/okian/vctrank/internal/adapters/repository/postgres"
	"github.com/okian/vctrank/internal/adapters/repository/sqlite"
	"github.com/okian/vctrank/internal/batch"
	"github.com/okian/vctrank/internal/config"
	"github.com/okian/vctrank/internal/domain/elo"
	"github.com/okian/vctrank/internal/domain/identity"
	"github.com/okian/vctrank/internal/domain/snapshot"
	"github.com/okian/vctrank/pkg/logger"
)

// OpenStore opens the configured storage driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN, sqlite.WithLogger(log))
	case "postgres":
		return postgres.Open(ctx, cfg.DSN, postgres.WithLogger(log))
	}
	return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.Driver)
}

// LoadSeedFile loads a JSON seed file into store.
func LoadSeedFile(ctx context.Context, path string, store batch.SeedStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	seed, err := batch.DecodeSeed(f)
	if err != nil {
		return 0, err
	}
	return seed.Load(ctx, store, "seed-"+uuid.New().String())
}

// BuildProvider assembles the resolver, engine and snapshot provider over
// store as cfg describes.
func BuildProvider(cfg *config.Config, store repository.Store, now func() time.Time, log logger.Logger) (*identity.Resolver, *snapshot.Provider) {
	groups := make([]identity.AliasGroup, 0, len(cfg.Aliases))
	for _, a := range cfg.Aliases {
		groups = append(groups, identity.AliasGroup{Canonical: a.Canonical, Variants: a.Variants})
	}
	resolver := identity.New(identity.WithAliasGroups(groups))

	engine := elo.New(resolver,
		elo.WithStartRating(cfg.Rating.Start),
		elo.WithKBase(cfg.Rating.KBase),
		elo.WithExcludeExhibitions(cfg.Rating.ExcludeExhibitions),
		elo.WithLogger(log.Named("engine")),
	)
	provider := snapshot.NewProvider(store, store,
		snapshot.WithEngine(engine),
		snapshot.WithClassifier(resolver),
		snapshot.WithClock(now),
		snapshot.WithExhibitionFilter(!cfg.Snapshot.ShowExhibitions),
		snapshot.WithLogger(log.Named("snapshot")),
	)
	return resolver, provider
}
