// Package editor holds the view-model state behind the payroll formula
// management screen: the list workspace and the create/edit session it
// opens. It talks to the backend through a small client interface so
// tests can substitute an in-memory one.
package editor

import (
	"context"
	"errors"
	"strings"

	"github.com/hriskit/formulas/client"
	"github.com/hriskit/formulas/formula"
)

// FilterAll shows every catalog field in the palette.
const FilterAll = "All"

// StoreClient is the slice of the REST client the editor needs.
type StoreClient interface {
	List(ctx context.Context) ([]client.Formula, error)
	Create(ctx context.Context, key, expression, description string) (client.Formula, error)
	Update(ctx context.Context, key, expression, description string) (client.Formula, error)
	Delete(ctx context.Context, key string) error
}

// Transcoder converts stored executable expressions into the simplified
// display grammar shown in the editor.
type Transcoder interface {
	Simplify(expression string) string
}

// Mode says whether a session creates a new formula or edits an
// existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

var errSessionClosed = errors.New("session already closed")

// Session is one open create-or-edit interaction. Fields are mutated
// through setters so the dirty/confirmed bookkeeping stays consistent.
type Session struct {
	mode Mode

	key         string
	expression  string
	description string

	// baseline snapshot, used to decide dirtiness in edit mode
	baseKey         string
	baseExpression  string
	baseDescription string

	fieldFilter string

	confirmed bool
	closed    bool
}

// NewCreateSession opens a blank session for a new formula.
func NewCreateSession() *Session {
	return &Session{mode: ModeCreate, fieldFilter: FilterAll}
}

// NewEditSession opens a session preloaded from an existing formula.
// The stored executable expression is simplified for display, and that
// simplified form becomes the baseline dirtiness is measured against.
func NewEditSession(f client.Formula, tc Transcoder) *Session {
	simplified := tc.Simplify(f.Expression)
	return &Session{
		mode:            ModeEdit,
		fieldFilter:     FilterAll,
		key:             f.Key,
		expression:      simplified,
		description:     f.Description,
		baseKey:         f.Key,
		baseExpression:  simplified,
		baseDescription: f.Description,
	}
}

func (s *Session) Mode() Mode          { return s.mode }
func (s *Session) Key() string         { return s.key }
func (s *Session) Expression() string  { return s.expression }
func (s *Session) Description() string { return s.description }

// SetKey changes the formula key. The key is immutable once a formula
// exists, so edit sessions refuse the change.
func (s *Session) SetKey(key string) error {
	if s.mode == ModeEdit {
		return errors.New("formula key cannot be changed after creation")
	}
	s.key = key
	return nil
}

func (s *Session) SetExpression(expr string) {
	s.expression = expr
	s.confirmed = false
}

func (s *Session) SetDescription(desc string) {
	s.description = desc
	s.confirmed = false
}

// InsertToken appends a palette token (field, operator, rounding
// keyword, percentage) to the expression, space-separated.
func (s *Session) InsertToken(token string) {
	if s.expression == "" {
		s.SetExpression(token)
		return
	}
	s.SetExpression(s.expression + " " + token)
}

// FieldFilter is the palette's category filter: FilterAll or one of
// the catalog categories.
func (s *Session) FieldFilter() string { return s.fieldFilter }

func (s *Session) SetFieldFilter(filter string) {
	s.fieldFilter = filter
}

// PaletteFields returns the catalog fields the palette shows under the
// current category filter.
func (s *Session) PaletteFields() []formula.FieldDescriptor {
	fields := formula.Fields()
	if s.fieldFilter == FilterAll || s.fieldFilter == "" {
		return fields
	}
	out := fields[:0]
	for _, f := range fields {
		if string(f.Category) == s.fieldFilter {
			out = append(out, f)
		}
	}
	return out
}

// Dirty reports whether the session's fields differ from the baseline.
// Reverting every field to its original value makes the session clean
// again.
func (s *Session) Dirty() bool {
	return s.key != s.baseKey ||
		s.expression != s.baseExpression ||
		s.description != s.baseDescription
}

// SetConfirmed records that the user acknowledged the change warning.
func (s *Session) SetConfirmed(ok bool) {
	s.confirmed = ok
}

func (s *Session) Confirmed() bool { return s.confirmed }

// CanSave reports whether the save action is enabled: all fields must
// be non-blank, and an edit session with modifications needs the
// user's explicit confirmation first.
func (s *Session) CanSave() bool {
	if strings.TrimSpace(s.key) == "" ||
		strings.TrimSpace(s.expression) == "" ||
		strings.TrimSpace(s.description) == "" {
		return false
	}
	if s.mode == ModeEdit && s.Dirty() && !s.confirmed {
		return false
	}
	return true
}

// Save submits the session through the client. On success the session
// is closed; on failure every field keeps its current value so the
// user can correct and retry.
func (s *Session) Save(ctx context.Context, sc StoreClient) (client.Formula, error) {
	if s.closed {
		return client.Formula{}, errSessionClosed
	}
	if !s.CanSave() {
		return client.Formula{}, errors.New("session is not ready to save")
	}

	var (
		saved client.Formula
		err   error
	)
	switch s.mode {
	case ModeCreate:
		saved, err = sc.Create(ctx, s.key, s.expression, s.description)
	case ModeEdit:
		saved, err = sc.Update(ctx, s.key, s.expression, s.description)
	}
	if err != nil {
		return client.Formula{}, err
	}
	s.closed = true
	return saved, nil
}

// Closed reports whether the session finished (saved or cancelled).
func (s *Session) Closed() bool { return s.closed }

// Cancel closes the session, discarding any edits.
func (s *Session) Cancel() {
	s.closed = true
}
