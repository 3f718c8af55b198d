package perception

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakePage scripts Eval responses keyed by a substring of the script.
type fakePage struct {
	url     string
	title   string
	results map[string]interface{}
	evalErr error
	scripts []string
}

func (f *fakePage) Eval(_ context.Context, js string) (interface{}, error) {
	f.scripts = append(f.scripts, js)
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	for key, res := range f.results {
		if strings.Contains(js, key) {
			return res, nil
		}
	}
	return nil, errors.New("no scripted result")
}

func (f *fakePage) CurrentURL() string     { return f.url }
func (f *fakePage) Title() (string, error) { return f.title, nil }

func countsResult() map[string]interface{} {
	return map[string]interface{}{
		"links": float64(12), "forms": float64(1), "buttons": float64(4),
		"inputs": float64(3), "text_size": float64(5400),
	}
}

func TestAnalyzeQuick(t *testing.T) {
	p := &fakePage{url: "https://example.com", title: "Example"}
	a := NewAnalyzer(nil)
	got, err := a.AnalyzePage(context.Background(), p, ModeQuick, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com" || got.Title != "Example" {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.LinkCount != 0 || len(p.scripts) != 0 {
		t.Error("quick mode must not inject scripts")
	}
}

func TestAnalyzeStandard(t *testing.T) {
	p := &fakePage{
		url:     "https://example.com",
		results: map[string]interface{}{"text_size": countsResult()},
	}
	a := NewAnalyzer(nil)
	got, err := a.AnalyzePage(context.Background(), p, ModeStandard, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.LinkCount != 12 || got.FormCount != 1 || got.ButtonCount != 4 || got.InputCount != 3 {
		t.Errorf("counts wrong: %+v", got)
	}
	if got.TextSize != 5400 {
		t.Errorf("text size = %d, want 5400", got.TextSize)
	}
}

func TestAnalyzeDeep(t *testing.T) {
	p := &fakePage{
		url: "https://example.com",
		results: map[string]interface{}{
			"text_size": countsResult(),
			"headings": map[string]interface{}{
				"elements": []interface{}{
					map[string]interface{}{
						"tag": "button", "selector": "#submit", "text": "Submit", "role": "submit",
					},
				},
				"headings": []interface{}{"Welcome", "Pricing"},
			},
		},
	}
	a := NewAnalyzer(nil)
	got, err := a.AnalyzePage(context.Background(), p, ModeDeep, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.KeyElements) != 1 || got.KeyElements[0].Selector != "#submit" {
		t.Errorf("key elements wrong: %+v", got.KeyElements)
	}
	if len(got.Headings) != 2 || got.Headings[0] != "Welcome" {
		t.Errorf("headings wrong: %v", got.Headings)
	}
}

func TestAnalyzeUnknownModeFallsBack(t *testing.T) {
	p := &fakePage{
		url:     "https://example.com",
		results: map[string]interface{}{"text_size": countsResult()},
	}
	a := NewAnalyzer(nil)
	got, err := a.AnalyzePage(context.Background(), p, "forensic", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != ModeStandard {
		t.Errorf("mode = %q, want standard fallback", got.Mode)
	}
}

func TestFindSearchInput(t *testing.T) {
	p := &fakePage{
		results: map[string]interface{}{"candidates": "input[name=q]"},
	}
	a := NewAnalyzer(nil)
	sel, err := a.FindSearchInput(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sel != "input[name=q]" {
		t.Errorf("selector = %q", sel)
	}
}

func TestFindSearchInputAbsent(t *testing.T) {
	p := &fakePage{
		results: map[string]interface{}{"candidates": ""},
	}
	a := NewAnalyzer(nil)
	if _, err := a.FindSearchInput(context.Background(), p); err == nil {
		t.Fatal("expected error when no search input found")
	}
}

func TestAnalyzeWithSearchDetection(t *testing.T) {
	p := &fakePage{
		url: "https://example.com",
		results: map[string]interface{}{
			"text_size":  countsResult(),
			"candidates": "input[type=search]",
		},
	}
	a := NewAnalyzer(nil)
	got, err := a.AnalyzePage(context.Background(), p, ModeStandard, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.SearchInput != "input[type=search]" {
		t.Errorf("search input = %q", got.SearchInput)
	}
}

func TestFindByText(t *testing.T) {
	p := &fakePage{
		results: map[string]interface{}{
			"needle": []interface{}{
				map[string]interface{}{"selector": "button:nth-of-type(2)", "tag": "button", "text": "Sign in"},
				map[string]interface{}{"selector": "", "tag": "a", "text": "Sign in later"},
			},
		},
	}
	a := NewAnalyzer(nil)
	matches, err := a.FindByText(context.Background(), p, "Sign in")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (empty selectors dropped)", len(matches))
	}
	if matches[0].Selector != "button:nth-of-type(2)" || matches[0].Tag != "button" {
		t.Errorf("match wrong: %+v", matches[0])
	}
	// The needle is lowercased and escaped into the script.
	if !strings.Contains(p.scripts[0], "sign in") {
		t.Error("needle not embedded in script")
	}
}

func TestFindByTextEvalError(t *testing.T) {
	p := &fakePage{evalErr: errors.New("page gone")}
	a := NewAnalyzer(nil)
	if _, err := a.FindByText(context.Background(), p, "x"); err == nil {
		t.Fatal("expected error")
	}
}
