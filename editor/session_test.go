package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/hriskit/formulas/client"
	"github.com/hriskit/formulas/expr"
)

// fakeStore is an in-memory StoreClient for exercising the view-model
// without a server.
type fakeStore struct {
	formulas map[string]client.Formula
	order    []string
	listErr  error
	failNext error
	listed   int
}

var _ StoreClient = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{formulas: make(map[string]client.Formula)}
}

func (s *fakeStore) List(ctx context.Context) ([]client.Formula, error) {
	s.listed++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []client.Formula{}
	for _, key := range s.order {
		out = append(out, s.formulas[key])
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, key, expression, description string) (client.Formula, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return client.Formula{}, err
	}
	if _, exists := s.formulas[key]; exists {
		return client.Formula{}, &client.APIError{Status: 409, Message: "formula key " + key + " already exists"}
	}
	f := client.Formula{ID: "id-" + key, Key: key, Expression: expression, Description: description, Active: true}
	s.formulas[key] = f
	s.order = append(s.order, key)
	return f, nil
}

func (s *fakeStore) Update(ctx context.Context, key, expression, description string) (client.Formula, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return client.Formula{}, err
	}
	f, exists := s.formulas[key]
	if !exists {
		return client.Formula{}, &client.APIError{Status: 404, Message: "formula " + key + " not found"}
	}
	f.Expression = expression
	f.Description = description
	s.formulas[key] = f
	return f, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	if _, exists := s.formulas[key]; !exists {
		return &client.APIError{Status: 404, Message: "formula " + key + " not found"}
	}
	delete(s.formulas, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func TestCreateSessionSaveGate(t *testing.T) {
	s := NewCreateSession()

	if s.CanSave() {
		t.Error("blank session should not be saveable")
	}
	if err := s.SetKey("testBonus"); err != nil {
		t.Fatalf("SetKey() failed: %v", err)
	}
	s.SetExpression("baseSalary * 0.1")
	if s.CanSave() {
		t.Error("session without description should not be saveable")
	}
	s.SetDescription("10% bonus")
	if !s.CanSave() {
		t.Error("fully filled create session should be saveable")
	}
}

func TestEditSessionShowsSimplifiedExpression(t *testing.T) {
	f := client.Formula{
		Key:         "monthlyRate",
		Expression:  "Math.floor(parseFloat(record.rateNbc584 || 0))",
		Description: "base monthly rate",
	}
	s := NewEditSession(f, expr.NewSimplifier())

	if got := s.Expression(); got != "Round Down rateNbc584" {
		t.Errorf("Expression() = %q, want %q", got, "Round Down rateNbc584")
	}
}

func TestEditSessionKeyImmutable(t *testing.T) {
	s := NewEditSession(client.Formula{Key: "pera", Expression: "pera", Description: "x"}, expr.NewSimplifier())
	if err := s.SetKey("renamed"); err == nil {
		t.Error("SetKey() on an edit session should fail")
	}
	if s.Key() != "pera" {
		t.Errorf("Key() = %q after rejected rename", s.Key())
	}
}

func TestEditSessionDirtyAndRevert(t *testing.T) {
	s := NewEditSession(client.Formula{Key: "pera", Expression: "parseFloat(record.pera || 0)", Description: "allowance"}, expr.NewSimplifier())

	if s.Dirty() {
		t.Error("untouched session should be clean")
	}
	original := s.Expression()
	s.SetExpression(original + " + 100")
	if !s.Dirty() {
		t.Error("changed expression should mark the session dirty")
	}
	if s.CanSave() {
		t.Error("dirty edit session needs confirmation before save")
	}
	s.SetConfirmed(true)
	if !s.CanSave() {
		t.Error("confirmed dirty session should be saveable")
	}

	// reverting to the exact original makes it clean again
	s.SetExpression(original)
	if s.Dirty() {
		t.Error("reverted session should be clean")
	}
	if !s.CanSave() {
		t.Error("clean edit session should be saveable without confirmation")
	}
}

func TestSetExpressionResetsConfirmation(t *testing.T) {
	s := NewEditSession(client.Formula{Key: "pera", Expression: "pera", Description: "x"}, expr.NewSimplifier())

	s.SetExpression("pera + 100")
	s.SetConfirmed(true)
	s.SetExpression("pera + 200")
	if s.CanSave() {
		t.Error("a further edit should invalidate the earlier confirmation")
	}
}

func TestSetDescriptionResetsConfirmation(t *testing.T) {
	s := NewEditSession(client.Formula{Key: "pera", Expression: "pera", Description: "x"}, expr.NewSimplifier())

	s.SetDescription("y")
	s.SetConfirmed(true)
	s.SetDescription("z")
	if s.CanSave() {
		t.Error("a description edit should invalidate the earlier confirmation")
	}
}

func TestInsertTokenAppends(t *testing.T) {
	s := NewCreateSession()

	s.InsertToken("rateNbc584")
	if got := s.Expression(); got != "rateNbc584" {
		t.Errorf("Expression() = %q, want bare token", got)
	}
	s.InsertToken("*")
	s.InsertToken("0.09")
	if got := s.Expression(); got != "rateNbc584 * 0.09" {
		t.Errorf("Expression() = %q, want %q", got, "rateNbc584 * 0.09")
	}
}

func TestPaletteFieldFilter(t *testing.T) {
	s := NewCreateSession()

	if s.FieldFilter() != FilterAll {
		t.Errorf("new session filter = %q, want %q", s.FieldFilter(), FilterAll)
	}
	all := len(s.PaletteFields())
	if all == 0 {
		t.Fatal("palette should show the full catalog by default")
	}

	s.SetFieldFilter("input")
	inputs := s.PaletteFields()
	if len(inputs) == 0 || len(inputs) >= all {
		t.Errorf("input filter returned %d of %d fields", len(inputs), all)
	}
	for _, f := range inputs {
		if f.Category != "input" {
			t.Errorf("input filter leaked field %s (%s)", f.Identifier, f.Category)
		}
	}

	s.SetFieldFilter(FilterAll)
	if len(s.PaletteFields()) != all {
		t.Error("resetting the filter should restore the full catalog")
	}
}

func TestSaveFailureKeepsFields(t *testing.T) {
	store := newFakeStore()
	store.failNext = errors.New("backend unavailable")

	s := NewCreateSession()
	s.SetKey("testBonus")
	s.SetExpression("baseSalary * 0.1")
	s.SetDescription("10% bonus")

	if _, err := s.Save(context.Background(), store); err == nil {
		t.Fatal("Save() should surface the backend error")
	}
	if s.Closed() {
		t.Error("failed save must leave the session open")
	}
	if s.Key() != "testBonus" || s.Expression() != "baseSalary * 0.1" || s.Description() != "10% bonus" {
		t.Error("failed save must leave the fields intact")
	}

	// retry succeeds once the backend recovers
	if _, err := s.Save(context.Background(), store); err != nil {
		t.Fatalf("retry Save() failed: %v", err)
	}
	if !s.Closed() {
		t.Error("successful save should close the session")
	}
}
