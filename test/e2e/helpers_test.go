package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	"github.com/trustdev-org/calendar-diary/internal/localfs"
	"github.com/trustdev-org/calendar-diary/internal/mcpserver"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
	"github.com/trustdev-org/calendar-diary/internal/server"
	"github.com/trustdev-org/calendar-diary/internal/session"
	"golang.org/x/net/webdav"
	"golang.org/x/text/language"
)

const (
	davUser    = "diary"
	davPass    = "secret"
	passphrase = "correct horse battery staple"
)

// harness is one WebDAV server shared by several devices.
type harness struct {
	URL string
	FS  webdav.FileSystem
}

// newHarness starts an in-memory WebDAV server that requires basic auth.
func newHarness(t *testing.T) *harness {
	t.Helper()

	fs := webdav.NewMemFS()
	dav := &webdav.Handler{FileSystem: fs, LockSystem: webdav.NewMemLS()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != davUser || p != davPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="diary"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return &harness{URL: srv.URL, FS: fs}
}

// raw returns a file as stored on the WebDAV server.
func (h *harness) raw(t *testing.T, p string) []byte {
	t.Helper()

	f, err := h.FS.OpenFile(context.Background(), path.Join(remote.DefaultRootPath, p), os.O_RDONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

// device is one installation: its own diary files and HTTP surface,
// syncing through the shared WebDAV server with encryption on.
type device struct {
	URL   string
	Files *localfs.Store
}

func (h *harness) newDevice(t *testing.T) *device {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	files, err := localfs.New(t.TempDir(), logger)
	require.NoError(t, err)

	sealed, err := remote.NewSealed(remote.NewWebDAV(remote.WebDAVConfig{
		URL:      h.URL,
		Username: davUser,
		Password: davPass,
		RootPath: remote.DefaultRootPath,
		Timeout:  10 * time.Second,
	}), passphrase)
	require.NoError(t, err)

	engine := cloudsync.New(files, sealed, cloudsync.Options{Logger: logger})

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "calendar-diary-e2e", Version: "test"},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, engine)

	mux := server.NewMux(server.MuxConfig{
		Session: session.NewHandler(engine, logger, language.English),
		MCPHandler: mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return mcpServer
		}, nil),
		Version: "test",
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &device{URL: srv.URL, Files: files}
}

// seed writes local content with the given marker.
func (d *device) seed(t *testing.T, updatedAt string, days map[string]string) {
	t.Helper()

	entries := models.Entries{}
	for day, text := range days {
		entries[day] = models.DayRecord{
			Date:     day,
			Events:   []models.DayEvent{{ID: day, RawText: text, Summary: text, Emoji: "📝"}},
			Stickers: []string{},
		}
	}

	require.NoError(t, d.Files.Save(models.LocalData{Entries: entries, Plans: models.Plans{}, UpdatedAt: updatedAt}))
}

// mcpSession connects to the device's MCP endpoint using the SDK's
// StreamableClientTransport.
func (d *device) mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{Endpoint: d.URL + "/mcp"}
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

// callTool calls a tool and decodes its JSON text content into dest.
func callTool(t *testing.T, s *mcp.ClientSession, name string, args map[string]any, dest any) {
	t.Helper()

	result, err := s.CallTool(t.Context(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, result.IsError, "tool %s failed: %s", name, textContent(result))
	require.NoError(t, json.Unmarshal([]byte(textContent(result)), dest))
}

func textContent(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ws opens a session websocket to the device.
func (d *device) ws(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(t.Context(), "ws"+strings.TrimPrefix(d.URL, "http")+"/session", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

// await reads session frames until one of the wanted type arrives.
func await(t *testing.T, conn *websocket.Conn, want string) session.ServerMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	for {
		var msg session.ServerMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type == want {
			return msg
		}
		require.NotEqual(t, session.TypeError, msg.Type, "session error: %s", msg.Error)
	}
}
