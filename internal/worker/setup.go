// Package worker wires the pipeline's dependencies and registers workflows
// and activities with Temporal workers. Initialization lives here so the
// stage packages stay focused on activity logic.
package worker

import (
	"context"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/agents"
	"github.com/oakgrove/gradepipe/internal/blobstore"
	"github.com/oakgrove/gradepipe/internal/config"
	"github.com/oakgrove/gradepipe/internal/genclient"
	"github.com/oakgrove/gradepipe/internal/lockcache"
	"github.com/oakgrove/gradepipe/internal/store"
	"github.com/oakgrove/gradepipe/pkg/events"
)

// Deps carries everything the stage activities need, built once at startup
// and handed to registration.
type Deps struct {
	Cfg    *config.Config
	Stores store.Stores
	Blobs  blobstore.Store
	Locks  lockcache.Cache
	Client genclient.Client
	Chain  *agents.Chain
	Sink   events.EventSink
}

// BuildDeps connects to object storage and Redis and constructs the
// generation client and agent chain. The document stores default to the
// in-memory implementation; production deployments swap in a database-backed
// store.Stores here.
func BuildDeps(ctx context.Context, cfg *config.Config) (*Deps, error) {
	blobs, err := blobstore.NewMinio(blobstore.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	locks, err := lockcache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	client := genclient.NewOpenAIClient(genclient.Config{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     cfg.Generation.Timeout,
	})

	return &Deps{
		Cfg:    cfg,
		Stores: store.NewMemoryStores(),
		Blobs:  blobs,
		Locks:  locks,
		Client: client,
		Chain:  agents.NewChain(client, cfg.Generation.MaxRepairAttempts),
		Sink:   events.NewNoOpEventSink(),
	}, nil
}
