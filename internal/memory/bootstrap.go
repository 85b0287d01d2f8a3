package memory

import (
	"context"
	"fmt"
	"log/slog"

	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

// EnsureCollection resets the vector collection to cfg. Any existing
// collection with the same name is deleted along with its contents, then
// recreated and re-read to confirm the vector size. It must run once, before
// the service accepts traffic. Every failure is a BootstrapError.
func EnsureCollection(ctx context.Context, admin CollectionAdmin, cfg CollectionConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		return memerrors.NewBootstrapError("collection name is required", nil)
	}
	if cfg.VectorSize <= 0 {
		return memerrors.NewBootstrapError(fmt.Sprintf("invalid vector size %d", cfg.VectorSize), nil)
	}
	if cfg.Distance == "" {
		cfg.Distance = DistanceCosine
	}
	if !cfg.Distance.Valid() {
		return memerrors.NewBootstrapError(fmt.Sprintf("unsupported distance %q", cfg.Distance), nil)
	}

	names, err := admin.ListCollections(ctx)
	if err != nil {
		return memerrors.NewBootstrapError("list collections", err)
	}
	for _, name := range names {
		if name != cfg.Name {
			continue
		}
		logger.Warn("deleting existing collection", "collection", cfg.Name)
		if err := admin.DeleteCollection(ctx, cfg.Name); err != nil {
			return memerrors.NewBootstrapError("delete collection", err)
		}
		break
	}

	if err := admin.CreateCollection(ctx, cfg); err != nil {
		return memerrors.NewBootstrapError("create collection", err)
	}

	info, err := admin.GetCollection(ctx, cfg.Name)
	if err != nil {
		return memerrors.NewBootstrapError("get collection", err)
	}
	if info.VectorSize != cfg.VectorSize {
		return memerrors.NewBootstrapError(
			fmt.Sprintf("collection %q reports vector size %d, want %d", cfg.Name, info.VectorSize, cfg.VectorSize), nil)
	}

	logger.Info("collection ready",
		"collection", cfg.Name,
		"vector_size", info.VectorSize,
		"distance", string(cfg.Distance))
	return nil
}
