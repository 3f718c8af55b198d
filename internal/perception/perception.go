// Package perception surveys live pages through injected scripts,
// turning the DOM into compact structural summaries the planner and
// fallback machinery can reason about.
package perception

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"webpilot/internal/browser"
)

// Page is the slice of session behavior the analyzer needs. It is
// satisfied by *browser.Session.
type Page interface {
	Eval(ctx context.Context, js string) (interface{}, error)
	CurrentURL() string
	Title() (string, error)
}

// Mode selects how much of the page the analyzer inspects.
const (
	ModeQuick    = "quick"
	ModeStandard = "standard"
	ModeDeep     = "deep"
)

// KeyElement is one interactive element surfaced by a deep analysis.
type KeyElement struct {
	Tag      string `json:"tag"`
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Analysis is the result of one page survey. Fields beyond URL and
// Title are filled according to the requested mode.
type Analysis struct {
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Mode        string       `json:"mode"`
	LinkCount   int          `json:"link_count,omitempty"`
	FormCount   int          `json:"form_count,omitempty"`
	ButtonCount int          `json:"button_count,omitempty"`
	InputCount  int          `json:"input_count,omitempty"`
	TextSize    int          `json:"text_size,omitempty"`
	KeyElements []KeyElement `json:"key_elements,omitempty"`
	Headings    []string     `json:"headings,omitempty"`
	SearchInput string       `json:"search_input,omitempty"`
}

// Analyzer runs page surveys.
type Analyzer struct {
	logger *zap.Logger
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger.With(zap.String("component", "perception"))}
}

// cssPathJS computes a selector path for an element, preferring ids
// and falling back to nth-of-type chains.
const cssPathJS = `
	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		while (el && el.nodeType === Node.ELEMENT_NODE && parts.length < 6) {
			let part = el.tagName.toLowerCase();
			if (el.id) { parts.unshift('#' + CSS.escape(el.id)); break; }
			const parent = el.parentElement;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.tagName === el.tagName);
				if (siblings.length > 1) part += ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
			}
			parts.unshift(part);
			el = parent;
		}
		return parts.join(' > ');
	};`

// AnalyzePage surveys the current document. Unknown modes fall back to
// standard with a warning rather than failing the step.
func (a *Analyzer) AnalyzePage(ctx context.Context, p Page, mode string, findSearch bool) (*Analysis, error) {
	switch mode {
	case ModeQuick, ModeStandard, ModeDeep:
	case "":
		mode = ModeStandard
	default:
		a.logger.Warn("unknown analysis mode, using standard", zap.String("mode", mode))
		mode = ModeStandard
	}

	analysis := &Analysis{URL: p.CurrentURL(), Mode: mode}
	if title, err := p.Title(); err == nil {
		analysis.Title = title
	}

	if mode != ModeQuick {
		if err := a.fillCounts(ctx, p, analysis); err != nil {
			return nil, err
		}
	}
	if mode == ModeDeep {
		if err := a.fillKeyElements(ctx, p, analysis); err != nil {
			a.logger.Warn("key element survey failed", zap.Error(err))
		}
	}
	if findSearch {
		if sel, err := a.FindSearchInput(ctx, p); err == nil {
			analysis.SearchInput = sel
		} else {
			a.logger.Debug("no search input detected", zap.Error(err))
		}
	}
	return analysis, nil
}

func (a *Analyzer) fillCounts(ctx context.Context, p Page, analysis *Analysis) error {
	js := `() => ({
		links: document.querySelectorAll('a[href]').length,
		forms: document.querySelectorAll('form').length,
		buttons: document.querySelectorAll('button, input[type=button], input[type=submit], [role=button]').length,
		inputs: document.querySelectorAll('input, textarea, select').length,
		text_size: document.body ? document.body.innerText.length : 0,
	})`
	res, err := p.Eval(ctx, js)
	if err != nil {
		return fmt.Errorf("page counts: %w", err)
	}
	m, ok := res.(map[string]interface{})
	if !ok {
		return fmt.Errorf("page counts: unexpected result shape")
	}
	analysis.LinkCount = intField(m, "links")
	analysis.FormCount = intField(m, "forms")
	analysis.ButtonCount = intField(m, "buttons")
	analysis.InputCount = intField(m, "inputs")
	analysis.TextSize = intField(m, "text_size")
	return nil
}

func (a *Analyzer) fillKeyElements(ctx context.Context, p Page, analysis *Analysis) error {
	js := `() => {` + cssPathJS + `
		const picks = Array.from(document.querySelectorAll(
			'button, a[href], input, textarea, select, [role=button], [onclick]'
		)).slice(0, 50).map(el => ({
			tag: el.tagName.toLowerCase(),
			selector: cssPath(el),
			text: (el.innerText || el.value || el.placeholder || '').trim().substring(0, 80),
			role: el.getAttribute('role') || el.type || '',
		}));
		const headings = Array.from(document.querySelectorAll('h1, h2, h3'))
			.map(h => h.innerText.trim()).filter(t => t).slice(0, 20);
		return { elements: picks, headings: headings };
	}`
	res, err := p.Eval(ctx, js)
	if err != nil {
		return fmt.Errorf("key elements: %w", err)
	}
	m, ok := res.(map[string]interface{})
	if !ok {
		return fmt.Errorf("key elements: unexpected result shape")
	}
	if els, ok := m["elements"].([]interface{}); ok {
		for _, item := range els {
			em, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			ke := KeyElement{}
			if v, ok := em["tag"].(string); ok {
				ke.Tag = v
			}
			if v, ok := em["selector"].(string); ok {
				ke.Selector = v
			}
			if v, ok := em["text"].(string); ok {
				ke.Text = v
			}
			if v, ok := em["role"].(string); ok {
				ke.Role = v
			}
			if ke.Selector != "" {
				analysis.KeyElements = append(analysis.KeyElements, ke)
			}
		}
	}
	if hs, ok := m["headings"].([]interface{}); ok {
		for _, h := range hs {
			if s, ok := h.(string); ok {
				analysis.Headings = append(analysis.Headings, s)
			}
		}
	}
	return nil
}

// searchInputCandidates are tried in order; the first present and
// visible one wins.
var searchInputCandidates = []string{
	"input[type=search]",
	"input[name=q]",
	"input[name*=search]",
	"input[placeholder*=search i]",
	"input[aria-label*=search i]",
	"#search input",
	"form[role=search] input",
	"input[type=text]",
}

// FindSearchInput detects the page's primary search box and returns a
// selector for it.
func (a *Analyzer) FindSearchInput(ctx context.Context, p Page) (string, error) {
	res, err := p.Eval(ctx, `() => {
		const candidates = [`+candidateLiteral()+`];
		for (const sel of candidates) {
			try {
				const el = document.querySelector(sel);
				if (el && el.offsetParent !== null) return sel;
			} catch (e) {}
		}
		return '';
	}`)
	if err != nil {
		return "", fmt.Errorf("find search input: %w", err)
	}
	sel, _ := res.(string)
	if sel == "" {
		return "", fmt.Errorf("no search input on page")
	}
	return sel, nil
}

func candidateLiteral() string {
	quoted := make([]string, len(searchInputCandidates))
	for i, c := range searchInputCandidates {
		quoted[i] = "'" + browser.EscapeJSString(c) + "'"
	}
	return strings.Join(quoted, ", ")
}

// Match is one element located by visible text.
type Match struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Text     string `json:"text"`
}

// FindByText locates clickable elements whose visible text contains
// the given fragment, case-insensitively.
func (a *Analyzer) FindByText(ctx context.Context, p Page, text string) ([]Match, error) {
	js := `() => {` + cssPathJS + `
		const needle = '` + browser.EscapeJSString(strings.ToLower(text)) + `';
		return Array.from(document.querySelectorAll(
			'button, a, input[type=button], input[type=submit], [role=button], label, [onclick]'
		)).filter(el => {
			const t = (el.innerText || el.value || '').toLowerCase();
			return t.includes(needle);
		}).slice(0, 10).map(el => ({
			selector: cssPath(el),
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.value || '').trim().substring(0, 80),
		}));
	}`
	res, err := p.Eval(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("find by text %q: %w", text, err)
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("find by text: unexpected result shape")
	}
	matches := make([]Match, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		match := Match{}
		if v, ok := m["selector"].(string); ok {
			match.Selector = v
		}
		if v, ok := m["tag"].(string); ok {
			match.Tag = v
		}
		if v, ok := m["text"].(string); ok {
			match.Text = v
		}
		if match.Selector != "" {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
