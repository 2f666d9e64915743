package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/obras/config"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	fbgateway "github.com/GoSim-25-26J-441/obras/internal/gateway/firebase"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/memory"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/pgdocs"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/redisdocs"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/s3blobs"
)

// Opened is a connected backend. DB is set for the postgres backend only.
type Opened struct {
	Backend *gateway.Backend
	DB      *pgxpool.Pool
}

// OpenBackend connects the document and identity backend selected by
// BACKEND and the blob store selected by BLOB_BACKEND. Outside firebase,
// identities are kept in process.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Opened, error) {
	out := &Opened{}

	switch cfg.Backend.Kind {
	case "memory":
		out.Backend = memory.NewBackend(cfg.Server.PublicURL)
		if cfg.Backend.BlobKind != "memory" {
			out.Backend.Blobs = nil
		}

	case "firebase":
		b, err := fbgateway.NewBackend(ctx, firebaseConfig(cfg), cfg.Backend.BlobKind == "firebase")
		if err != nil {
			return nil, err
		}
		out.Backend = b

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		out.Backend = &gateway.Backend{
			Name: "redis",
			Auth: memory.NewAuth(),
			Docs: redisdocs.New(client, cfg.App.AppID),
		}
		out.Backend.OnClose(client.Close)

	case "postgres":
		pool, err := OpenDB(ctx, dbOptions(cfg))
		if err != nil {
			return nil, err
		}
		store := pgdocs.New(pool, cfg.App.AppID)
		out.DB = pool
		out.Backend = &gateway.Backend{
			Name: "postgres",
			Auth: memory.NewAuth(),
			Docs: store,
		}
		out.Backend.OnClose(func() error {
			pool.Close()
			return nil
		})
		out.Backend.OnClose(store.Close)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}

	if out.Backend.Blobs == nil {
		blobs, err := openBlobs(ctx, cfg)
		if err != nil {
			_ = out.Backend.Close()
			return nil, err
		}
		out.Backend.Blobs = blobs
	}
	return out, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (gateway.BlobStore, error) {
	switch cfg.Backend.BlobKind {
	case "memory":
		return memory.NewBlobs(cfg.Server.PublicURL), nil

	case "s3":
		return s3blobs.Open(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.Backend.BlobURLTTL)

	case "firebase":
		fc := firebaseConfig(cfg)
		app, err := fbgateway.InitializeApp(ctx, fc)
		if err != nil {
			return nil, err
		}
		sc, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get Storage client: %w", err)
		}
		bucket, err := sc.Bucket(fc.StorageBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket %q: %w", fc.StorageBucket, err)
		}
		return fbgateway.NewBlobs(bucket, fc.StorageBucket, fc.SignedURLs, fc.URLTTL), nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend.BlobKind)
}

func dbOptions(cfg *config.Config) DBOptions {
	return DBOptions{
		DSN:      cfg.Database.DSN,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}
}

func firebaseConfig(cfg *config.Config) fbgateway.Config {
	return fbgateway.Config{
		ProjectID:       cfg.Firebase.ProjectID,
		CredentialsPath: cfg.Firebase.CredentialsPath,
		APIKey:          cfg.Firebase.APIKey,
		StorageBucket:   cfg.Firebase.StorageBucket,
		AppID:           cfg.App.AppID,
		SignedURLs:      cfg.Backend.BlobSignedURLs,
		URLTTL:          cfg.Backend.BlobURLTTL,
	}
}
