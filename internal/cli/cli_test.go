package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/obras/config"
)

func staticConfig(cfg *config.Config) loadFunc {
	return func() (*config.Config, error) { return cfg, nil }
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	cmd := newMigrateCmd(staticConfig(&config.Config{Backend: config.BackendConfig{Kind: "memory"}}))
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "BACKEND=postgres")
}

func TestServe_ConfigError(t *testing.T) {
	boom := errors.New("bad config")
	cmd := newServeCmd(func() (*config.Config, error) { return nil, boom })
	cmd.SetArgs([]string{})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), boom)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", PublicURL: "http://localhost"},
		App:     config.AppConfig{Environment: "test", AppID: "obras", LogLevel: "error"},
		Backend: config.BackendConfig{Kind: "memory", BlobKind: "memory"},
		Session: config.SessionConfig{Secret: "secret", IdleTimeout: time.Minute},
		Watch:   config.WatchConfig{MinBackoff: time.Millisecond, MaxBackoff: time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
