package command

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"webpilot/internal/intent"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{
		"navigate_to_url", "click_element", "input_text", "clear_input",
		"press_key", "focus_element", "hover_element", "select_option",
		"wait_for_element", "wait_for_condition", "extract_text",
		"extract_links", "extract_images", "extract_tables",
		"extract_attributes", "extract_form", "get_element_info",
		"take_screenshot", "analyze_page", "scroll_page", "go_back",
		"refresh_page",
	} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("builtin %q not registered", name)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Register(NewCommand("click_element", CategoryInteraction).Build())
	if err == nil {
		t.Fatal("expected error registering duplicate name")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := r.Register(NewCommand(fmt.Sprintf("custom_%d", i), CategoryInteraction).Build()); err != nil {
				t.Errorf("register custom_%d: %v", i, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, ok := r.Get("click_element"); !ok {
				t.Error("click_element missing during concurrent access")
			}
			r.All()
		}()
	}
	wg.Wait()

	if got := len(r.All()); got != len(Builtins())+8 {
		t.Errorf("catalog size = %d, want %d", got, len(Builtins())+8)
	}
}

func TestRegisterEmptyName(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(Command{}); err == nil {
		t.Fatal("expected error registering empty name")
	}
}

func TestForIntentTable(t *testing.T) {
	r := NewRegistry(nil)
	tests := []struct {
		raw  string
		want string
	}{
		{"go to example.com", "navigate_to_url"},
		{"click the \"Login\" button", "click_element"},
		{"type \"hello\" into the comment box", "input_text"},
		{"wait for \"#results\" to appear", "wait_for_element"},
		{"extract the text", "extract_text"},
		{"extract all links", "extract_links"},
		{"extract the images", "extract_images"},
		{"extract the pricing table", "extract_tables"},
		{"take a screenshot", "take_screenshot"},
		{"go back", "go_back"},
		{"refresh the page", "refresh_page"},
	}
	for _, tt := range tests {
		instr := intent.Classify(tt.raw)
		sel, err := r.ForIntent(instr)
		if err != nil {
			t.Fatalf("ForIntent(%q): %v", tt.raw, err)
		}
		if sel.Command.Name != tt.want {
			t.Errorf("ForIntent(%q) = %s, want %s", tt.raw, sel.Command.Name, tt.want)
		}
	}
}

func TestForIntentInfersNavigateURL(t *testing.T) {
	r := NewRegistry(nil)
	sel, err := r.ForIntent(intent.Classify("go to example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if got := sel.Parameters["url"]; got != "example.com" {
		t.Errorf("url parameter = %v, want example.com", got)
	}
}

func TestForIntentInfersTypeParams(t *testing.T) {
	r := NewRegistry(nil)
	sel, err := r.ForIntent(intent.Classify("type \"hello world\" into the search box"))
	if err != nil {
		t.Fatal(err)
	}
	if got := sel.Parameters["text"]; got != "hello world" {
		t.Errorf("text parameter = %v, want hello world", got)
	}
	if got := sel.Parameters["clear_first"]; got != true {
		t.Errorf("clear_first = %v, want true", got)
	}
}

func TestSelectDeterministic(t *testing.T) {
	r := NewRegistry(nil)
	instr := intent.Classify("click the submit button")
	first, err := r.Select(instr)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.Select(instr)
		if err != nil {
			t.Fatal(err)
		}
		if again.Command.Name != first.Command.Name || again.Score != first.Score {
			t.Fatalf("selection not stable: run %d picked %s (%.4f), first was %s (%.4f)",
				i, again.Command.Name, again.Score, first.Command.Name, first.Score)
		}
	}
}

func TestSelectScoreBounds(t *testing.T) {
	r := NewRegistry(nil)
	for _, raw := range []string{
		"click the button",
		"navigate to example.com and open the pricing page",
		"do something weird",
	} {
		instr := intent.Classify(raw)
		sel, err := r.Select(instr)
		if err != nil {
			t.Fatal(err)
		}
		if sel.Score < 0 || sel.Score > 1 {
			t.Errorf("Select(%q) score %.4f out of [0,1]", raw, sel.Score)
		}
		for _, alt := range sel.Alternatives {
			if alt.Score > sel.Score {
				t.Errorf("alternative %s (%.4f) outranks winner %s (%.4f)",
					alt.Name, alt.Score, sel.Command.Name, sel.Score)
			}
		}
	}
}

func TestSelectPrefersTagMatches(t *testing.T) {
	r := NewRegistry(nil)
	sel, err := r.Select(intent.Classify("click the login button"))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Command.Name != "click_element" {
		t.Errorf("expected click_element to win, got %s", sel.Command.Name)
	}
}

func TestSelectAlternativesCapped(t *testing.T) {
	r := NewRegistry(nil)
	sel, err := r.Select(intent.Classify("extract the page text and links"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Alternatives) > 3 {
		t.Errorf("expected at most 3 alternatives, got %d", len(sel.Alternatives))
	}
}

func TestSuccessRateInfluencesScore(t *testing.T) {
	r := NewRegistry(nil)
	instr := intent.Classify("click the submit button")
	base, err := r.Select(instr)
	if err != nil {
		t.Fatal(err)
	}
	// Fewer than 6 executions must not move the score.
	for i := 0; i < 5; i++ {
		r.Stats().Record(Execution{Command: "click_element", Success: true})
	}
	mid, _ := r.Select(instr)
	if mid.Score != base.Score {
		t.Errorf("score changed with only 5 executions: %.4f vs %.4f", mid.Score, base.Score)
	}
	r.Stats().Record(Execution{Command: "click_element", Success: true})
	after, _ := r.Select(instr)
	if after.Score < base.Score {
		t.Errorf("perfect success rate lowered score: %.4f vs %.4f", after.Score, base.Score)
	}
}

func TestInferParametersIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	cmd, _ := r.Get("input_text")
	instr := intent.Classify("type \"alpha\" into the \"#name\" field")
	first := r.InferParameters(cmd, instr)
	for i := 0; i < 5; i++ {
		again := r.InferParameters(cmd, instr)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("inference unstable: %v vs %v", first, again)
		}
	}
}

func TestInferParametersDefaults(t *testing.T) {
	r := NewRegistry(nil)
	cmd, _ := r.Get("take_screenshot")
	params := r.InferParameters(cmd, intent.Classify("take a screenshot"))
	if got := params["format"]; got != "png" {
		t.Errorf("format default = %v, want png", got)
	}
	if got := params["quality"]; got != int64(90) {
		t.Errorf("quality default = %v, want 90", got)
	}
}

func TestBuilder(t *testing.T) {
	cmd := NewCommand("custom_probe", CategoryValidation).
		Description("probe something").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 1}).
		Tags("probe", "check").
		Complexity(0.5).
		TypicalDuration(700).
		ModifiesState().
		Build()

	if cmd.Name != "custom_probe" || cmd.Category != CategoryValidation {
		t.Errorf("unexpected identity: %+v", cmd)
	}
	if len(cmd.Parameters) != 1 || len(cmd.Fallbacks) != 1 || len(cmd.SemanticTags) != 2 {
		t.Errorf("builder dropped fields: %+v", cmd)
	}
	if !cmd.ModifiesState || cmd.TypicalDurationMs != 700 {
		t.Errorf("builder flags wrong: %+v", cmd)
	}
	if _, ok := cmd.Param("selector"); !ok {
		t.Error("Param lookup failed")
	}
	if _, ok := cmd.Param("missing"); ok {
		t.Error("Param lookup matched missing name")
	}
}

func TestFallbackOrderClickElement(t *testing.T) {
	r := NewRegistry(nil)
	cmd, _ := r.Get("click_element")
	want := []FallbackKind{
		FallbackScrollToElement,
		FallbackWaitAndRetry,
		FallbackUseJavaScript,
		FallbackVisualDetection,
		FallbackClickParentElement,
	}
	if len(cmd.Fallbacks) != len(want) {
		t.Fatalf("click_element has %d fallbacks, want %d", len(cmd.Fallbacks), len(want))
	}
	for i, k := range want {
		if cmd.Fallbacks[i].Kind != k {
			t.Errorf("fallback[%d] = %s, want %s", i, cmd.Fallbacks[i].Kind, k)
		}
	}
}
