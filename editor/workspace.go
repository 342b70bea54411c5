package editor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hriskit/formulas/client"
)

const defaultPageSize = 10

// truncateAt is how many characters of the simplified calculation the
// table column shows before cutting over to an ellipsis.
const truncateAt = 60

// Row is one line of the formula table. Calculation is the simplified
// expression, possibly truncated; Tooltip always carries the full
// simplified text.
type Row struct {
	Key         string
	Calculation string
	Tooltip     string
	Description string
	Active      bool
}

// Workspace is the view-model behind the formula list screen. It owns
// the loaded formulas, the search and pagination state, and at most one
// open editing session.
type Workspace struct {
	client     StoreClient
	transcoder Transcoder
	log        *slog.Logger

	formulas []client.Formula
	search   string
	page     int
	pageSize int

	session        *Session
	pendingRefresh bool
}

// NewWorkspace builds a workspace over the given client. A nil logger
// falls back to the process default.
func NewWorkspace(sc StoreClient, tc Transcoder, log *slog.Logger) *Workspace {
	if log == nil {
		log = slog.Default()
	}
	return &Workspace{
		client:     sc,
		transcoder: tc,
		log:        log,
		pageSize:   defaultPageSize,
	}
}

// Load fetches the formula list from the backend.
func (w *Workspace) Load(ctx context.Context) error {
	formulas, err := w.client.List(ctx)
	if err != nil {
		return err
	}
	w.formulas = formulas
	return nil
}

// Refresh reloads the list, unless a session is open: then the reload
// is deferred until the session closes, so the form being edited is
// never yanked out from under the user. Errors from the deferred path
// are logged, not surfaced.
func (w *Workspace) Refresh(ctx context.Context) {
	if w.session != nil && !w.session.Closed() {
		w.pendingRefresh = true
		return
	}
	if err := w.Load(ctx); err != nil {
		w.log.Error("formula list refresh failed", "error", err)
	}
}

// SetSearch filters rows by substring match on the key and resets
// pagination to the first page.
func (w *Workspace) SetSearch(q string) {
	w.search = strings.ToLower(strings.TrimSpace(q))
	w.page = 0
}

func (w *Workspace) SetPage(p int) {
	if p < 0 {
		p = 0
	}
	w.page = p
}

func (w *Workspace) SetPageSize(n int) {
	if n > 0 {
		w.pageSize = n
	}
}

func (w *Workspace) filtered() []client.Formula {
	if w.search == "" {
		return w.formulas
	}
	out := []client.Formula{}
	for _, f := range w.formulas {
		if strings.Contains(strings.ToLower(f.Key), w.search) {
			out = append(out, f)
		}
	}
	return out
}

// PageCount reports how many pages the current filter spans.
func (w *Workspace) PageCount() int {
	n := len(w.filtered())
	if n == 0 {
		return 1
	}
	return (n + w.pageSize - 1) / w.pageSize
}

// Rows renders the current page of the filtered list. Stored
// expressions are shown in their simplified form.
func (w *Workspace) Rows() []Row {
	filtered := w.filtered()
	start := w.page * w.pageSize
	if start >= len(filtered) {
		return nil
	}
	end := start + w.pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	rows := make([]Row, 0, end-start)
	for _, f := range filtered[start:end] {
		simplified := w.transcoder.Simplify(f.Expression)
		rows = append(rows, Row{
			Key:         f.Key,
			Calculation: truncate(simplified, truncateAt),
			Tooltip:     simplified,
			Description: f.Description,
			Active:      f.Active,
		})
	}
	return rows
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// OpenCreate starts a blank session. Only one session may be open.
func (w *Workspace) OpenCreate() (*Session, error) {
	if w.session != nil && !w.session.Closed() {
		return nil, errors.New("another session is already open")
	}
	w.session = NewCreateSession()
	return w.session, nil
}

// OpenEdit starts a session preloaded from the formula with the given
// key.
func (w *Workspace) OpenEdit(key string) (*Session, error) {
	if w.session != nil && !w.session.Closed() {
		return nil, errors.New("another session is already open")
	}
	for _, f := range w.formulas {
		if f.Key == key {
			w.session = NewEditSession(f, w.transcoder)
			return w.session, nil
		}
	}
	return nil, errors.New("formula " + key + " is not loaded")
}

// SaveSession submits the open session and, on success, reloads the
// list and flushes any refresh that was deferred while it was open.
func (w *Workspace) SaveSession(ctx context.Context) error {
	if w.session == nil || w.session.Closed() {
		return errors.New("no open session")
	}
	if _, err := w.session.Save(ctx, w.client); err != nil {
		return err
	}
	w.closeSession(ctx, true)
	return nil
}

// CancelSession discards the open session and flushes any refresh that
// was deferred while it was open.
func (w *Workspace) CancelSession(ctx context.Context) {
	if w.session == nil {
		return
	}
	w.session.Cancel()
	w.closeSession(ctx, false)
}

func (w *Workspace) closeSession(ctx context.Context, saved bool) {
	reload := saved || w.pendingRefresh
	w.session = nil
	w.pendingRefresh = false
	if !reload {
		return
	}
	if err := w.Load(ctx); err != nil {
		w.log.Error("formula list reload failed", "error", err)
	}
}

// Session returns the open session, or nil.
func (w *Workspace) Session() *Session {
	if w.session == nil || w.session.Closed() {
		return nil
	}
	return w.session
}

// ConsumeRefresh applies a pending realtime notification from the hub,
// if one arrived. Called from the UI loop between interactions.
func (w *Workspace) ConsumeRefresh(ctx context.Context, hub *client.RefreshHub) {
	if hub.TryConsume() {
		w.Refresh(ctx)
	}
}

// Delete removes a formula after the confirm callback approves it. A
// declined confirmation leaves the backend untouched.
func (w *Workspace) Delete(ctx context.Context, key string, confirm func(key string) bool) error {
	if !confirm(key) {
		return nil
	}
	if err := w.client.Delete(ctx, key); err != nil {
		return err
	}
	return w.Load(ctx)
}
