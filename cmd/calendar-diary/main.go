package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/trustdev-org/calendar-diary/internal/archive"
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	"github.com/trustdev-org/calendar-diary/internal/config"
	"github.com/trustdev-org/calendar-diary/internal/console"
	"github.com/trustdev-org/calendar-diary/internal/localfs"
	"github.com/trustdev-org/calendar-diary/internal/logging"
	"github.com/trustdev-org/calendar-diary/internal/mcpserver"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
	"github.com/trustdev-org/calendar-diary/internal/server"
	"github.com/trustdev-org/calendar-diary/internal/session"
	"github.com/trustdev-org/calendar-diary/internal/state"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

var Version = "dev"

const usage = `usage: calendar-diary <command> [arguments]

Commands:
  status                      show local sync bookkeeping
  sync                        sync the diary with the remote copy
  backup                      create a remote backup of the local diary
  backups                     list remote backups
  restore FILE                restore a backup over the local diary
  delete FILE                 delete a remote backup
  export PATH                 write the diary to PATH (.json, .yaml or .yml)
  import PATH                 replace the diary with the contents of PATH
  configure URL USER [ROOT]   save WebDAV settings and test the connection
  configure --clear           forget saved WebDAV settings
  watch                       stamp local edits as they happen
  serve [-listen ADDR]        run the session websocket and MCP endpoint
  mcp                         serve MCP tools over stdio
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Print(usage)
		return nil
	}

	if args[0] == "version" {
		fmt.Println(Version)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]

	// MCP speaks its protocol on stdout; everything else goes to stderr.
	var out io.Writer = os.Stdout
	if cmd == "mcp" {
		out = os.Stderr
	}

	a, err := open(cfg, logger, console.New(os.Stdin, out, cloudsync.MatchLanguage(cfg.Language)))
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "status":
		return a.status()
	case "sync":
		return a.sync(ctx)
	case "backup":
		return a.backup(ctx)
	case "backups":
		return a.backups(ctx)
	case "restore":
		if len(rest) != 1 {
			return errors.New("usage: calendar-diary restore FILE")
		}
		return a.restore(ctx, rest[0])
	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: calendar-diary delete FILE")
		}
		return a.delete(ctx, rest[0])
	case "export":
		if len(rest) != 1 {
			return errors.New("usage: calendar-diary export PATH")
		}
		return a.export(rest[0])
	case "import":
		if len(rest) != 1 {
			return errors.New("usage: calendar-diary import PATH")
		}
		return a.importFile(rest[0])
	case "configure":
		return a.configure(ctx, rest)
	case "watch":
		return a.watch(ctx)
	case "serve":
		return a.serve(ctx, rest)
	case "mcp":
		return a.mcp(ctx)
	}

	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

// app holds the stores and UI shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	ui     *console.Console

	// db is state.db: saved settings, and the diary itself when the
	// bolt local store is selected.
	db    *state.State
	local cloudsync.LocalStore
	// files is set when the desktop file store is selected.
	files *localfs.Store
}

func open(cfg *config.Config, logger *slog.Logger, ui *console.Console) (*app, error) {
	db, err := state.LoadAt(filepath.Join(cfg.DataDir, state.FileName))
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	saved, err := db.RemoteSettings()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading saved settings: %w", err)
	}
	cfg.ApplyRemoteSettings(saved)

	a := &app{cfg: cfg, logger: logger, ui: ui, db: db, local: db}

	if cfg.LocalStore == config.LocalStoreFiles {
		files, err := localfs.New(cfg.DataDir, logger.With(slog.String("service", "localfs")))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening diary files: %w", err)
		}
		a.files = files
		a.local = files
	}

	logger.Debug("calendar-diary ready",
		slog.String("version", Version),
		slog.String("data_dir", cfg.DataDir),
		slog.String("local_store", cfg.LocalStore),
		slog.String("remote", cfg.Remote),
		slog.Bool("encrypted", cfg.EncryptionPassphrase != ""),
	)

	return a, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing state", slog.String("error", err.Error()))
	}
}

// remoteStore builds the configured remote, sealed when a passphrase
// is set.
func (a *app) remoteStore() (remote.Store, error) {
	if err := a.cfg.RemoteReady(); err != nil {
		return nil, err
	}

	var store remote.Store
	switch a.cfg.Remote {
	case config.RemoteS3:
		store = remote.NewS3(a.cfg.S3())
	default:
		store = remote.NewWebDAV(a.cfg.WebDAV())
	}

	if a.cfg.EncryptionPassphrase != "" {
		sealed, err := remote.NewSealed(store, a.cfg.EncryptionPassphrase)
		if err != nil {
			return nil, fmt.Errorf("setting up encryption: %w", err)
		}
		store = sealed
	}

	return store, nil
}

func (a *app) newEngine(store remote.Store) *cloudsync.Engine {
	return cloudsync.New(a.local, store, cloudsync.Options{
		Logger:   a.logger.With(slog.String("service", "sync")),
		Language: a.language(),
	})
}

// engine returns an engine bound to the terminal.
func (a *app) engine() (*cloudsync.Engine, error) {
	store, err := a.remoteStore()
	if err != nil {
		return nil, err
	}

	return a.newEngine(store).WithUI(a.ui, a.ui.Report), nil
}

func (a *app) language() language.Tag {
	return cloudsync.MatchLanguage(a.cfg.Language)
}

func (a *app) status() error {
	// Status never touches the remote, so it works before configure.
	st, err := a.newEngine(nil).Status()
	if err != nil {
		return err
	}

	a.ui.PrintStatus(st)
	return nil
}

func (a *app) sync(ctx context.Context) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	res, err := e.Sync(ctx)
	if err != nil {
		return err
	}

	a.ui.PrintResult(res)
	return nil
}

func (a *app) backup(ctx context.Context) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	res, err := e.CreateBackup(ctx)
	if err != nil {
		return err
	}

	a.ui.PrintResult(res)
	return nil
}

func (a *app) backups(ctx context.Context) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	list, err := e.ListBackups(ctx)
	if err != nil {
		return err
	}

	a.ui.PrintBackups(list)
	return nil
}

func (a *app) restore(ctx context.Context, filename string) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	res, err := e.RestoreBackup(ctx, filename)
	if err != nil {
		return err
	}

	a.ui.PrintResult(res)
	return nil
}

func (a *app) delete(ctx context.Context, filename string) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	res, err := e.DeleteBackup(ctx, filename)
	if err != nil {
		return err
	}

	a.ui.PrintResult(res)
	return nil
}

func (a *app) export(path string) error {
	days, err := archive.Export(path, a.local)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d days to %s\n", days, path)
	return nil
}

func (a *app) importFile(path string) error {
	res, err := archive.Import(path, a.local, time.Now())
	if err != nil {
		return err
	}

	a.logger.Info("import applied",
		slog.String("path", path),
		slog.Int("version", res.Version),
		slog.Bool("data", res.ReplacedData),
		slog.Bool("plans", res.ReplacedPlans),
	)
	fmt.Printf("Imported %d days and %d months of plans (content %s)\n", res.Days, res.Months, res.UpdatedAt)
	return nil
}

// configure saves WebDAV settings and checks the server with them, or
// clears the saved settings.
func (a *app) configure(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "--clear" {
		if err := a.db.ClearRemoteSettings(); err != nil {
			return err
		}
		fmt.Println("Saved WebDAV settings cleared.")
		return nil
	}

	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: calendar-diary configure URL USER [ROOT] | configure --clear")
	}

	rs := models.RemoteSettings{ServerURL: args[0], Username: args[1]}
	if len(args) == 3 {
		rs.RootPath = args[2]
	}

	rs.Password = os.Getenv("WEBDAV_PASSWORD")
	if rs.Password == "" {
		password, err := readPassword(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		rs.Password = password
	}

	if err := config.ValidateRemoteSettings(rs); err != nil {
		return err
	}

	if err := a.db.SaveRemoteSettings(rs); err != nil {
		return err
	}
	fmt.Println("WebDAV settings saved.")

	// Test the saved settings, not whatever the environment overrides.
	cfg := *a.cfg
	cfg.Remote = config.RemoteWebDAV
	cfg.WebDAVURL, cfg.WebDAVUsername, cfg.WebDAVPassword, cfg.WebDAVRoot = "", "", "", ""
	cfg.ApplyRemoteSettings(&rs)

	check := &app{cfg: &cfg, logger: a.logger, ui: a.ui, db: a.db, local: a.local}
	e, err := check.engine()
	if err != nil {
		return err
	}

	return e.Connect(ctx)
}

func (a *app) watch(ctx context.Context) error {
	if a.files == nil {
		return fmt.Errorf("watch needs DIARY_LOCAL_STORE=%s", config.LocalStoreFiles)
	}

	a.logger.Info("watching diary files", slog.String("dir", a.files.Dir()))
	return a.files.Watch(ctx)
}

// serve runs the session websocket and the streamable MCP endpoint on
// one listener, plus the file watcher when the file store is in use.
func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", a.cfg.SessionListenAddr, "HTTP listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := a.remoteStore()
	if err != nil {
		return err
	}
	engine := a.newEngine(store)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "calendar-diary", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, engine)

	mux := server.NewMux(server.MuxConfig{
		Session: session.NewHandler(engine, a.logger.With(slog.String("service", "session")), a.language()),
		MCPHandler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpServer
		}, nil),
		Version: Version,
	})

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", *listen, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, ln, mux, a.logger.With(slog.String("service", "http")))
	})

	if a.files != nil {
		g.Go(func() error {
			return a.files.Watch(gctx)
		})
	}

	return g.Wait()
}

func (a *app) mcp(ctx context.Context) error {
	store, err := a.remoteStore()
	if err != nil {
		return err
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "calendar-diary", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, a.newEngine(store))

	a.logger.Info("serving MCP over stdio")
	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
