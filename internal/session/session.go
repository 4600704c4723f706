// Package session bridges a sync session UI to the engine over a
// websocket.
//
// The client sends action frames and the server streams session events
// back. When the engine needs a user decision the server sends a
// decision request with a fresh id and the enumerated choices, and the
// operation waits until the client answers that id. Closing the socket
// cancels every pending decision, which the engine treats as cancel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	"golang.org/x/text/language"
)

const writeTimeout = 10 * time.Second

// Handler upgrades requests to websocket sessions. A "lang" query
// parameter selects the session log language.
type Handler struct {
	engine   *cloudsync.Engine
	logger   *slog.Logger
	language language.Tag
	origins  []string
}

// NewHandler returns a Handler running operations on engine. Only
// same-origin browsers may connect unless origins lists extra host
// patterns.
func NewHandler(engine *cloudsync.Engine, logger *slog.Logger, lang language.Tag, origins ...string) *Handler {
	return &Handler{engine: engine, logger: logger, language: lang, origins: origins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("session upgrade failed", slog.String("error", err.Error()))
		return
	}

	lang := h.language
	if q := r.URL.Query().Get("lang"); q != "" {
		lang = cloudsync.MatchLanguage(q)
	}

	c := &client{
		conn:    conn,
		logger:  h.logger.With(slog.String("remote_addr", r.RemoteAddr)),
		pending: make(map[string]*pendingDecision),
	}
	c.engine = h.engine.WithLanguage(lang).WithUI(c, c.report)

	c.logger.Info("session opened", slog.String("language", lang.String()))
	c.run(r.Context())
	c.logger.Info("session closed")
}

type pendingDecision struct {
	choices []string
	answer  chan string
}

// client is one connected UI. It is the Decider and ReportFunc for the
// engine view it owns.
type client struct {
	conn   *websocket.Conn
	engine *cloudsync.Engine
	logger *slog.Logger

	// ctx is the connection lifetime, used for event writes.
	ctx context.Context

	mu      sync.Mutex
	pending map[string]*pendingDecision
}

var _ cloudsync.Decider = (*client)(nil)

func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.ctx = ctx

	var ops sync.WaitGroup
	defer func() {
		cancel()
		ops.Wait()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug("session read failed", slog.String("error", err.Error()))
			}
			return
		}

		switch msg.Type {
		case TypeAction:
			ops.Add(1)
			go func() {
				defer ops.Done()
				c.perform(ctx, msg)
			}()

		case TypeDecision:
			c.answer(msg)

		default:
			c.send(ServerMessage{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (c *client) perform(ctx context.Context, msg ClientMessage) {
	reply := ServerMessage{Type: TypeResult, Action: msg.Action}

	var (
		res cloudsync.Result
		err error
	)

	switch msg.Action {
	case ActionStatus:
		var st cloudsync.Status
		st, err = c.engine.Status()
		reply.Status = &st
	case ActionList:
		reply.Backups, err = c.engine.ListBackups(ctx)
	case ActionSync:
		res, err = c.engine.Sync(ctx)
		reply.Result = &res
	case ActionBackup:
		res, err = c.engine.CreateBackup(ctx)
		reply.Result = &res
	case ActionRestore:
		res, err = c.engine.RestoreBackup(ctx, msg.Filename)
		reply.Result = &res
	case ActionDelete:
		res, err = c.engine.DeleteBackup(ctx, msg.Filename)
		reply.Result = &res
	default:
		err = fmt.Errorf("unknown action %q", msg.Action)
	}

	if err != nil {
		reply = ServerMessage{Type: TypeError, Action: msg.Action, Error: err.Error()}
	}

	c.send(reply)
}

// send writes one frame. Write errors mean the socket is gone; the read
// loop notices and tears the session down.
func (c *client) send(msg ServerMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		c.logger.Debug("session write failed", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
}

func (c *client) report(ev cloudsync.Event) {
	c.send(ServerMessage{Type: TypeEvent, Event: &ev})
}

// ask sends a decision request and waits for the matching answer.
func (c *client) ask(ctx context.Context, req ServerMessage) (string, error) {
	id := uuid.NewString()
	p := &pendingDecision{choices: req.Choices, answer: make(chan string, 1)}

	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req.Type = TypeDecisionRequest
	req.ID = id
	c.send(req)

	select {
	case choice := <-p.answer:
		return choice, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// answer routes a decision to its waiting request. Unknown ids and
// choices that were not offered are reported back and leave the request
// pending.
func (c *client) answer(msg ClientMessage) {
	c.mu.Lock()
	p, ok := c.pending[msg.ID]
	if ok && slices.Contains(p.choices, msg.Choice) {
		delete(c.pending, msg.ID)
		p.answer <- msg.Choice
	}
	c.mu.Unlock()

	switch {
	case !ok:
		c.send(ServerMessage{Type: TypeError, ID: msg.ID, Error: "no pending decision with this id"})
	case !slices.Contains(p.choices, msg.Choice):
		c.send(ServerMessage{Type: TypeError, ID: msg.ID, Error: fmt.Sprintf("choice %q not offered", msg.Choice)})
	}
}

func (c *client) ResolveConflict(ctx context.Context, conflict cloudsync.Conflict) (cloudsync.ConflictChoice, error) {
	choice, err := c.ask(ctx, ServerMessage{
		Decision: DecisionConflict,
		Choices:  choiceNames(cloudsync.ConflictChoices),
		Conflict: &conflict,
	})
	if err != nil {
		return cloudsync.ConflictCancel, err
	}

	return cloudsync.ParseConflictChoice(choice)
}

func (c *client) ConfirmRestore(ctx context.Context, req cloudsync.RestoreRequest) (cloudsync.RestoreChoice, error) {
	choice, err := c.ask(ctx, ServerMessage{
		Decision: DecisionRestore,
		Choices:  choiceNames(cloudsync.RestoreChoices),
		Restore:  &req,
	})
	if err != nil {
		return cloudsync.RestoreCancel, err
	}

	return cloudsync.ParseRestoreChoice(choice)
}

func (c *client) ConfirmDelete(ctx context.Context, req cloudsync.DeleteRequest) (cloudsync.DeleteChoice, error) {
	choice, err := c.ask(ctx, ServerMessage{
		Decision: DecisionDelete,
		Choices:  choiceNames(cloudsync.DeleteChoices),
		Delete:   &req,
	})
	if err != nil {
		return cloudsync.DeleteCancel, err
	}

	return cloudsync.ParseDeleteChoice(choice)
}
