// Package firebase binds the gateway to Firebase: Auth for identity,
// Firestore for documents and Cloud Storage for receipts.
package firebase

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

var defaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/devstorage.full_control",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

type Config struct {
	ProjectID       string
	CredentialsPath string
	APIKey          string
	StorageBucket   string
	AppID           string
	SignedURLs      bool
	URLTTL          time.Duration
}

// InitializeApp creates the Firebase app. Without a credentials file it
// falls back to Application Default Credentials.
func InitializeApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var opt option.ClientOption
	if cfg.CredentialsPath != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsPath)
	} else {
		creds, err := google.FindDefaultCredentials(ctx, defaultScopes...)
		if err != nil {
			return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH not set and no default credentials: %w", err)
		}
		opt = option.WithCredentials(creds)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewBackend opens every Firebase client the gateway needs.
func NewBackend(ctx context.Context, cfg Config, withBlobs bool) (*gateway.Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FIREBASE_API_KEY is required for password sign-in")
	}

	app, err := InitializeApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit client: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	b := &gateway.Backend{
		Name: "firebase",
		Auth: NewAuth(authClient, &toolkitVerifier{svc: toolkit}),
		Docs: NewDocs(fs, cfg.AppID),
	}
	b.OnClose(fs.Close)

	if withBlobs {
		sc, err := app.Storage(ctx)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to get Storage client: %w", err)
		}
		bucket, err := sc.Bucket(cfg.StorageBucket)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to open bucket %q: %w", cfg.StorageBucket, err)
		}
		b.Blobs = NewBlobs(bucket, cfg.StorageBucket, cfg.SignedURLs, cfg.URLTTL)
	}

	return b, nil
}
