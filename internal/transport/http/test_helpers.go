package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/auth"
	"github.com/avelichko/workchat/internal/config"
	"github.com/avelichko/workchat/internal/core"
	"github.com/avelichko/workchat/internal/store"
	"github.com/avelichko/workchat/internal/store/sqlite"
)

// testEnv bundles the pieces handler tests need: an in-memory store, a
// running hub and an httptest server on top of the real router.
type testEnv struct {
	store *sqlite.SQLiteStore
	auth  *auth.Service
	hub   *core.Hub
	ts    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, 100*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	disabledLogger := zerolog.New(nil)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 20,
	}

	server := NewServer(cfg, st, hub, authService, st, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{store: st, auth: authService, hub: hub, ts: ts}
}

// registerUser creates an account and returns its token and record.
func (e *testEnv) registerUser(t *testing.T, email, name string) (string, *store.User) {
	t.Helper()

	token, user, err := e.auth.Register(context.Background(), email, name, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return token, user
}

// createWorkspace seeds a workspace owned by the given user.
func (e *testEnv) createWorkspace(t *testing.T, name string, ownerID int64) *store.Workspace {
	t.Helper()

	ws, err := e.store.CreateWorkspace(context.Background(), name, ownerID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return ws
}

// createChannel seeds a channel with the given members.
func (e *testEnv) createChannel(t *testing.T, workspaceID int64, name string, kind store.ChannelKind, memberIDs ...int64) *store.Channel {
	t.Helper()

	ch, err := e.store.CreateChannel(context.Background(), &store.Channel{
		WorkspaceID: workspaceID,
		Name:        name,
		Kind:        kind,
	}, memberIDs)
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	return ch
}
