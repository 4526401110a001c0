package integration_tests

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharazmi/internal/connection"
	"kharazmi/internal/database"
	"kharazmi/internal/events"
	"kharazmi/internal/models"
	"kharazmi/internal/repositories"
	"kharazmi/internal/secrets"
	"kharazmi/internal/services"
)

func startServer(t *testing.T) models.Endpoint {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return models.Endpoint{Host: host, Port: p}
}

// startEchoServer replies to every text frame with "echo:" and the payload.
func startEchoServer(t *testing.T) models.Endpoint {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, append([]byte("echo:"), data...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return models.Endpoint{Host: host, Port: p}
}

func waitConnected(t *testing.T, c services.SettingsController, ep models.Endpoint) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := c.GetConnectionState()
		return st.State == models.StateConnected && st.Endpoint == ep.URL()
	}, 5*time.Second, 10*time.Millisecond, "last state %+v", c.GetConnectionState())
}

func TestSettingsFlow_ApplyReconnectsAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")

	ring := keyring.NewArrayKeyring(nil)
	newStore := func() repositories.SettingsFileRepository {
		return repositories.NewSettingsFileRepository(settingsPath, secrets.NewCodec(services.NewKeyringService(ring)))
	}

	first := startServer(t)
	second := startServer(t)

	initial := models.DefaultSettings()
	initial.WebSocket.ServerIP = first.Host
	initial.WebSocket.ServerPort = first.Port
	initial.Normalize()
	require.NoError(t, newStore().Save(ctx, initial))

	db, err := database.Init(database.Config{Path: filepath.Join(dir, "kharazmi.db")})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	supervisor := connection.NewSupervisor(connection.Options{HandshakeTimeout: 2 * time.Second, PingInterval: -1})
	t.Cleanup(supervisor.Close)

	controller := services.NewSettingsController(newStore(), repositories.NewSettingsRevisionRepository(db), supervisor, nil)
	require.NoError(t, controller.Startup(ctx))
	waitConnected(t, controller, first)

	// secrets only: the live connection is kept
	proposed := controller.GetSettings()
	proposed.AIAPIs.AnthropicAPIKey = "sk-ant-api03-integration"
	res, err := controller.ApplyAndSave(ctx, proposed)
	require.NoError(t, err)
	assert.False(t, res.Reconnecting)
	assert.Equal(t, models.StateConnected, controller.GetConnectionState().State)

	// endpoint change: reconnect to the second server
	proposed = controller.GetSettings()
	proposed.WebSocket.ServerPort = second.Port
	res, err = controller.ApplyAndSave(ctx, proposed)
	require.NoError(t, err)
	assert.True(t, res.Reconnecting)
	waitConnected(t, controller, second)

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-ant-api03-integration")

	reloaded, err := newStore().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, controller.GetSettings(), reloaded)

	history, err := controller.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Reconnect)
	assert.Equal(t, second.URL(), history[0].Endpoint)

	require.NoError(t, controller.Shutdown(ctx))
}

func TestSettingsFlow_TestConnectionDoesNotDisturbLiveState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	live := startServer(t)
	target := startServer(t)

	store := repositories.NewSettingsFileRepository(filepath.Join(dir, "settings.json"),
		secrets.NewCodec(services.NewKeyringService(keyring.NewArrayKeyring(nil))))
	initial := models.DefaultSettings()
	initial.WebSocket.ServerIP = live.Host
	initial.WebSocket.ServerPort = live.Port
	initial.Normalize()
	require.NoError(t, store.Save(ctx, initial))

	supervisor := connection.NewSupervisor(connection.Options{PingInterval: -1, ProbeTimeout: time.Second})
	t.Cleanup(supervisor.Close)
	controller := services.NewSettingsController(store, nil, supervisor, nil)
	require.NoError(t, controller.Startup(ctx))
	waitConnected(t, controller, live)

	latency, err := controller.TestConnection(ctx, target.Host, target.Port)
	require.NoError(t, err)
	assert.Greater(t, latency, time.Duration(0))
	assert.Equal(t, models.StateConnected, controller.GetConnectionState().State)
	assert.Equal(t, live.URL(), controller.GetConnectionState().Endpoint)
}

func TestSettingsFlow_MessagesReachTheFrontend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	ring := keyring.NewArrayKeyring(nil)
	server := startEchoServer(t)

	initial := models.DefaultSettings()
	initial.WebSocket.ServerIP = server.Host
	initial.WebSocket.ServerPort = server.Port
	initial.Normalize()
	store := repositories.NewSettingsFileRepository(path, secrets.NewCodec(services.NewKeyringService(ring)))
	require.NoError(t, store.Save(ctx, initial))

	received := make(chan events.SettingsEvent, 4)
	events.SetCustomEmitter(func(_ context.Context, name string, evt events.SettingsEvent) {
		if name == events.ConnectionMessage {
			received <- evt
		}
	})
	t.Cleanup(func() { events.SetCustomEmitter(nil) })

	svc := services.NewServices(services.Deps{
		Ring:         ring,
		SettingsFile: path,
		Connection:   connection.Options{HandshakeTimeout: 2 * time.Second, PingInterval: -1},
	})
	t.Cleanup(func() { _ = svc.Close() })

	require.NoError(t, svc.Settings.Startup(ctx))
	waitConnected(t, svc.Settings, server)

	require.NoError(t, svc.Settings.SendMessage([]byte("hello")))
	select {
	case evt := <-received:
		assert.Equal(t, "echo:hello", evt.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("no message event")
	}
}
