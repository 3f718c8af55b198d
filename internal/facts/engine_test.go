package facts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"webpilot/internal/config"
)

func testSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "automation.mg")
	schema := `
Decl command_completed(Command, Status, DurationMs).
Decl attempt_failed(Command, Attempt, Reason).
Decl fallback_applied(Command, Strategy).
Decl console_event(Level, Message, Timestamp).

Decl failed_command(Command).
failed_command(Cmd) :- command_completed(Cmd, "failed", _).
`
	if err := os.WriteFile(path, []byte(schema), 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func newTestEngine(t *testing.T, cfg config.FactsConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngineLoadSchema(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:          true,
		SchemaPath:      testSchema(t),
		FactBufferLimit: 1000,
	}

	e := newTestEngine(t, cfg)
	if !e.Ready() {
		t.Fatal("engine not ready after schema load")
	}
}

func TestEngineLoadSchemaError(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:     true,
		SchemaPath: "/nonexistent/schema.mg",
	}

	if _, err := NewEngine(cfg, nil); err == nil {
		t.Fatal("expected error for missing schema")
	}
}

func TestEngineAddFacts(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 1000}
	e := newTestEngine(t, cfg)

	ctx := context.Background()
	facts := []Fact{
		{
			Predicate: "command_completed",
			Args:      []interface{}{"click_element", "completed", int64(120)},
			Timestamp: time.Now(),
		},
		{
			Predicate: "attempt_failed",
			Args:      []interface{}{"click_element", int64(1), "element not found"},
			Timestamp: time.Now(),
		},
		{
			Predicate: "console_event",
			Args:      []interface{}{"error", "Failed to load resource", int64(1234567890)},
			Timestamp: time.Now(),
		},
	}

	if err := e.AddFacts(ctx, facts); err != nil {
		t.Fatalf("AddFacts failed: %v", err)
	}

	buffered := e.Facts()
	if len(buffered) != len(facts) {
		t.Errorf("expected %d facts in buffer, got %d", len(facts), len(buffered))
	}

	completed := e.FactsByPredicate("command_completed")
	if len(completed) != 1 {
		t.Errorf("expected 1 command_completed, got %d", len(completed))
	}
}

func TestEngineRecord(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 100}
	e := newTestEngine(t, cfg)

	if err := e.Record(context.Background(), "fallback_applied", "click_element", "scroll_to_element"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got := e.FactsByPredicate("fallback_applied")
	if len(got) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(got))
	}
	if got[0].Args[1] != "scroll_to_element" {
		t.Errorf("unexpected args: %+v", got[0].Args)
	}
}

func TestEngineDisabled(t *testing.T) {
	cfg := config.FactsConfig{Enable: false}
	e := newTestEngine(t, cfg)

	if !e.Ready() {
		t.Error("disabled engine should report ready")
	}

	if err := e.Record(context.Background(), "command_completed", "x", "completed", int64(1)); err != nil {
		t.Fatalf("Record on disabled engine failed: %v", err)
	}
	if len(e.Facts()) != 0 {
		t.Error("disabled engine should not buffer facts")
	}

	if err := e.AddRule("Decl foo(X)."); err != nil {
		t.Errorf("AddRule on disabled engine should be a no-op, got %v", err)
	}
}

func TestEngineBufferLimit(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 5}
	e := newTestEngine(t, cfg)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := e.Record(ctx, "console_event", "log", "msg", int64(i)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	buffered := e.Facts()
	if len(buffered) != 5 {
		t.Fatalf("expected buffer trimmed to 5, got %d", len(buffered))
	}
	// Oldest entries were evicted.
	if buffered[0].Args[2] != int64(5) {
		t.Errorf("expected oldest surviving fact to have timestamp 5, got %v", buffered[0].Args[2])
	}

	// Index stays consistent after trim.
	indexed := e.FactsByPredicate("console_event")
	if len(indexed) != 5 {
		t.Errorf("expected 5 indexed facts, got %d", len(indexed))
	}
}

func TestEngineQueryTemporal(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 100}
	e := newTestEngine(t, cfg)

	now := time.Now()
	facts := []Fact{
		{Predicate: "navigation_event", Args: []interface{}{"s1", "https://a.com", int64(1)}, Timestamp: now.Add(-2 * time.Hour)},
		{Predicate: "navigation_event", Args: []interface{}{"s1", "https://b.com", int64(2)}, Timestamp: now.Add(-30 * time.Minute)},
		{Predicate: "navigation_event", Args: []interface{}{"s1", "https://c.com", int64(3)}, Timestamp: now},
	}
	if err := e.AddFacts(context.Background(), facts); err != nil {
		t.Fatalf("AddFacts failed: %v", err)
	}

	recent := e.QueryTemporal("navigation_event", now.Add(-time.Hour), time.Time{})
	if len(recent) != 2 {
		t.Errorf("expected 2 recent facts, got %d", len(recent))
	}

	old := e.QueryTemporal("navigation_event", time.Time{}, now.Add(-time.Hour))
	if len(old) != 1 {
		t.Errorf("expected 1 old fact, got %d", len(old))
	}

	none := e.QueryTemporal("no_such_predicate", time.Time{}, time.Time{})
	if len(none) != 0 {
		t.Errorf("expected no facts, got %d", len(none))
	}
}

func TestEngineMatchesAll(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 100}
	e := newTestEngine(t, cfg)

	ctx := context.Background()
	if err := e.Record(ctx, "command_completed", "navigate_to_url", "completed", int64(900)); err != nil {
		t.Fatal(err)
	}
	if err := e.Record(ctx, "console_event", "warn", "deprecated API", int64(10)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		conds []Fact
		want  bool
	}{
		{
			name:  "empty conditions match",
			conds: nil,
			want:  true,
		},
		{
			name:  "predicate only",
			conds: []Fact{{Predicate: "command_completed"}},
			want:  true,
		},
		{
			name:  "exact args",
			conds: []Fact{{Predicate: "command_completed", Args: []interface{}{"navigate_to_url", "completed"}}},
			want:  true,
		},
		{
			name:  "arg mismatch",
			conds: []Fact{{Predicate: "command_completed", Args: []interface{}{"navigate_to_url", "failed"}}},
			want:  false,
		},
		{
			name:  "missing predicate",
			conds: []Fact{{Predicate: "plan_completed"}},
			want:  false,
		},
		{
			name: "all conditions must hold",
			conds: []Fact{
				{Predicate: "command_completed"},
				{Predicate: "console_event", Args: []interface{}{"warn"}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.MatchesAll(tt.conds); got != tt.want {
				t.Errorf("MatchesAll = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineQuery(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:          true,
		SchemaPath:      testSchema(t),
		FactBufferLimit: 1000,
	}
	e := newTestEngine(t, cfg)

	ctx := context.Background()
	if err := e.Record(ctx, "command_completed", "click_element", "failed", int64(3000)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	results, err := e.Query(ctx, `command_completed(Cmd, Status, Dur).`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one binding")
	}
	if results[0]["Cmd"] != "click_element" {
		t.Errorf("expected Cmd binding 'click_element', got %v", results[0]["Cmd"])
	}
}

func TestEngineQueryNotReady(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, DisableBuiltin: true}
	e := newTestEngine(t, cfg)

	if _, err := e.Query(context.Background(), `foo(X).`); err == nil {
		t.Error("expected error when schema not loaded")
	}
	if _, err := e.Evaluate(context.Background(), "foo"); err == nil {
		t.Error("expected error when schema not loaded")
	}
}

func TestEngineBuiltinRules(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 100}
	e := newTestEngine(t, cfg)

	if !e.Ready() {
		t.Fatal("engine without a schema path should load the builtin schema")
	}

	ctx := context.Background()
	if err := e.Record(ctx, "command_completed", "click_element", "failed", int64(150)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	derived, err := e.Evaluate(ctx, "failed_command")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(derived) != 1 {
		t.Fatalf("expected 1 failed_command fact, got %d", len(derived))
	}
	if derived[0].Args[0] != "click_element" {
		t.Errorf("unexpected derived fact: %+v", derived[0])
	}

	if err := e.Record(ctx, "fallback_applied", "input_text", "use_javascript"); err != nil {
		t.Fatal(err)
	}
	if err := e.Record(ctx, "command_completed", "input_text", "completed", int64(400)); err != nil {
		t.Fatal(err)
	}
	recovered, err := e.Evaluate(ctx, "recovered_command")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("expected 1 recovered_command fact, got %d", len(recovered))
	}
}

func TestEngineQueryParseError(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:          true,
		SchemaPath:      testSchema(t),
		FactBufferLimit: 100,
	}
	e := newTestEngine(t, cfg)

	if _, err := e.Query(context.Background(), `not valid mangle ((`); err == nil {
		t.Error("expected parse error")
	}
}

func TestEngineAddRule(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:          true,
		SchemaPath:      testSchema(t),
		FactBufferLimit: 100,
	}
	e := newTestEngine(t, cfg)

	rule := `
Decl slow_command(Command).
slow_command(Cmd) :-
    command_completed(Cmd, _, Dur),
    Dur >= 5000.
`
	if err := e.AddRule(rule); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
}

func TestEngineSubscription(t *testing.T) {
	cfg := config.FactsConfig{
		Enable:          true,
		SchemaPath:      testSchema(t),
		FactBufferLimit: 100,
	}
	e := newTestEngine(t, cfg)

	ch := make(chan WatchEvent, 4)
	e.Subscribe("failed_command", ch)

	if err := e.Record(context.Background(), "command_completed", "click_element", "failed", int64(100)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Predicate != "failed_command" {
			t.Errorf("expected failed_command event, got %q", ev.Predicate)
		}
		if len(ev.Facts) == 0 {
			t.Error("expected derived facts in event")
		}
	case <-time.After(time.Second):
		t.Fatal("no watch event delivered")
	}

	e.Unsubscribe("failed_command", ch)
	if got := e.watchedPredicates(); len(got) != 0 {
		t.Errorf("expected no watched predicates after unsubscribe, got %v", got)
	}
}

func TestEngineFactsByPredicateEmpty(t *testing.T) {
	cfg := config.FactsConfig{Enable: true, FactBufferLimit: 10}
	e := newTestEngine(t, cfg)

	got := e.FactsByPredicate("nothing_here")
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d facts", len(got))
	}
}
