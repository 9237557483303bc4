package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/profile"
	"github.com/JakeFAU/my-github-review/internal/storage/sqlite"
)

func init() {
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
}

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("store:\n  driver: sqlite\n  sqlite_path: %q\n", dbPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReconcileCommand(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "profiles.db")

	store, err := sqlite.Open(ctx, sqlite.Config{Path: dbPath})
	require.NoError(t, err)
	now := time.Now()
	orphan := profile.JobKey{Username: "bob", Year: 2023}
	done := profile.JobKey{Username: "alice", Year: 2024}
	require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: orphan, CreatedAt: now}))
	require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: done, CreatedAt: now}))
	require.NoError(t, store.SaveCompleted(ctx, profile.CompletedContext{Key: done, Payload: "{}", CreatedAt: now}))
	require.NoError(t, store.Close())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"reconcile", "--config", writeConfig(t, dbPath)})
	require.NoError(t, root.ExecuteContext(ctx))
	require.Contains(t, out.String(), "removed 1 orphaned pending markers")

	store, err = sqlite.Open(ctx, sqlite.Config{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()
	pending, err := store.HasPending(ctx, orphan)
	require.NoError(t, err)
	require.False(t, pending)
	completed, err := store.HasCompleted(ctx, done)
	require.NoError(t, err)
	require.True(t, completed)
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"reconcile", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

func TestResolveRuntimeMissing(t *testing.T) {
	_, err := resolveSession(context.Background())
	require.Error(t, err)
}
