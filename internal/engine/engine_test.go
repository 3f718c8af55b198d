package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"webpilot/internal/browser"
	"webpilot/internal/command"
	"webpilot/internal/config"
)

// fakeDriver scripts page behavior per method. Unset hooks succeed.
type fakeDriver struct {
	title      string
	url        string
	exists     bool
	visible    bool
	clickable  bool
	clickErr   []error // consumed per attempt
	clickCalls int
	typeErr    error
	text       string
	scrolled   bool
	jsClicked  bool
	refreshed  bool
	evalResult interface{}
	evalErr    error
	shotOpts   browser.ScreenshotOptions
	focused    string
	hovered    string
	selected   string
	condErr    error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		title: "Example", url: "https://example.com",
		exists: true, visible: true, clickable: true,
		text: "body text",
	}
}

func (f *fakeDriver) Navigate(_ context.Context, rawURL string) (string, error) {
	f.url = browser.NormalizeURL(rawURL)
	return f.url, nil
}
func (f *fakeDriver) CurrentURL() string     { return f.url }
func (f *fakeDriver) Title() (string, error) { return f.title, nil }
func (f *fakeDriver) Exists(string) bool     { return f.exists }
func (f *fakeDriver) Visible(string) bool    { return f.visible }
func (f *fakeDriver) Clickable(string) bool  { return f.clickable }

func (f *fakeDriver) Click(ctx context.Context, _ string) error {
	f.clickCalls++
	if len(f.clickErr) > 0 {
		err := f.clickErr[0]
		f.clickErr = f.clickErr[1:]
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			<-ctx.Done()
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (f *fakeDriver) ClickWithJS(context.Context, string) error {
	f.jsClicked = true
	return nil
}
func (f *fakeDriver) ClickParent(context.Context, string) error { return nil }
func (f *fakeDriver) ForceClick(context.Context, string) error  { return nil }
func (f *fakeDriver) ScrollIntoView(context.Context, string) error {
	f.scrolled = true
	return nil
}
func (f *fakeDriver) ScrollBy(context.Context, int, int) error { return nil }
func (f *fakeDriver) Type(_ context.Context, _, _ string, _ bool) error {
	return f.typeErr
}
func (f *fakeDriver) Clear(context.Context, string) error    { return nil }
func (f *fakeDriver) PressKey(context.Context, string) error { return nil }
func (f *fakeDriver) Focus(_ context.Context, sel string) error {
	f.focused = sel
	return nil
}
func (f *fakeDriver) Hover(_ context.Context, sel string) error {
	f.hovered = sel
	return nil
}
func (f *fakeDriver) SelectOption(_ context.Context, _, value string) error {
	f.selected = value
	return nil
}
func (f *fakeDriver) WaitForElement(context.Context, string, time.Duration) error {
	return nil
}
func (f *fakeDriver) WaitForCondition(context.Context, string, time.Duration) error {
	return f.condErr
}
func (f *fakeDriver) GoBack(context.Context) error { return nil }
func (f *fakeDriver) Refresh(context.Context) error {
	f.refreshed = true
	return nil
}
func (f *fakeDriver) Screenshot(_ context.Context, opts browser.ScreenshotOptions) (*browser.ScreenshotResult, error) {
	f.shotOpts = opts
	format := opts.Format
	if format == "" {
		format = "png"
	}
	return &browser.ScreenshotResult{Path: "screenshots/test." + format, Format: format, SizeBytes: 100}, nil
}
func (f *fakeDriver) Eval(context.Context, string) (interface{}, error) {
	return f.evalResult, f.evalErr
}
func (f *fakeDriver) ExtractText(context.Context, string) (string, error) { return f.text, nil }
func (f *fakeDriver) ExtractLinks(context.Context) ([]browser.Link, error) {
	return []browser.Link{{Text: "Home", Href: "https://example.com/", Internal: true}}, nil
}
func (f *fakeDriver) ExtractImages(context.Context) ([]browser.Image, error) { return nil, nil }
func (f *fakeDriver) ExtractTables(context.Context) ([]browser.Table, error) { return nil, nil }
func (f *fakeDriver) ExtractAttributes(context.Context, string) (map[string]string, error) {
	return map[string]string{"id": "go", "type": "submit"}, nil
}
func (f *fakeDriver) ExtractForm(context.Context, string) (*browser.Form, error) {
	return &browser.Form{
		Action: "https://example.com/search",
		Method: "get",
		Fields: []browser.FormField{{Name: "q", Type: "text", Required: true}},
	}, nil
}
func (f *fakeDriver) ElementInfo(context.Context, string) (*browser.ElementDetails, error) {
	return &browser.ElementDetails{Tag: "button", ID: "go", Visible: true, Width: 80, Height: 24}, nil
}
func (f *fakeDriver) IsConnected() bool { return true }

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxRetries:     3,
		DefaultTimeout: "5s",
		MinConfidence:  0.3,
		RetryDelay:     "10ms",
	}
}

func mustGet(t *testing.T, name string) *command.Command {
	t.Helper()
	r := command.NewRegistry(nil)
	cmd, ok := r.Get(name)
	if !ok {
		t.Fatalf("command %q missing", name)
	}
	return cmd
}

func TestExecuteClickCompletes(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: -1,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Confidence)
	}
	if res.Output["clicked"] != "#go" {
		t.Errorf("output = %v", res.Output)
	}
	if d.clickCalls != 1 {
		t.Errorf("click calls = %d, want 1", d.clickCalls)
	}
}

func TestExecuteRetriesLowerConfidence(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	d.clickErr = []error{errors.New("node is detached")}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 1,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.RetryCount != 1 {
		t.Errorf("retries = %d, want 1", res.RetryCount)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", res.Confidence)
	}
}

func TestExecuteMaxRetriesZero(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	// Every attempt fails; without fallback success the command fails.
	d.clickErr = []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}
	// Disarm the recovering fallbacks so the primary path decides.
	cmd := *mustGet(t, "click_element")
	cmd.Fallbacks = nil
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if res.RetryCount != 0 {
		t.Errorf("retries = %d, want 0 with zero budget", res.RetryCount)
	}
	if d.clickCalls != 1 {
		t.Errorf("click calls = %d, want exactly 1", d.clickCalls)
	}
}

func TestExecuteFallbackRecovers(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	d.clickErr = []error{errors.New("not interactable")}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	// First ladder rung is scroll_to_element, which re-runs the click.
	if !d.scrolled {
		t.Error("scroll fallback did not run")
	}
	if len(res.FallbacksUsed) == 0 || res.FallbacksUsed[0] != "scroll_to_element" {
		t.Errorf("fallbacks used = %v", res.FallbacksUsed)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 via fallback", res.Confidence)
	}
}

func TestExecuteFallbackOrderRespected(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	// Primary fails, scroll retry fails, wait retries fail, then the
	// javascript rung succeeds without touching Click.
	d.clickErr = []error{
		errors.New("a"), errors.New("b"),
		errors.New("c"), errors.New("d"), errors.New("e"),
	}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	want := []string{"scroll_to_element", "wait_and_retry", "use_javascript"}
	if !reflect.DeepEqual(res.FallbacksUsed, want) {
		t.Errorf("fallbacks used = %v, want %v", res.FallbacksUsed, want)
	}
	if !d.jsClicked {
		t.Error("javascript click never ran")
	}
	if res.Output["clicked_via_js"] != true {
		t.Errorf("output = %v", res.Output)
	}
}

func TestExecutePreconditionFailureFallsBack(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	d.clickable = false
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	// The scroll fallback re-dispatches and the click itself works.
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if len(res.FallbacksUsed) == 0 {
		t.Error("expected fallback after precondition failure")
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	d.clickErr = []error{
		context.DeadlineExceeded, context.DeadlineExceeded,
		context.DeadlineExceeded, context.DeadlineExceeded,
	}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "click_element"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
		Timeout:    50 * time.Millisecond,
	})
	if res.Status != StatusTimedOut {
		t.Fatalf("status = %s, want timed_out", res.Status)
	}
	if res.ErrorKind != KindTimeout {
		t.Errorf("error kind = %s", res.ErrorKind)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", res.Confidence)
	}
}

func TestExecuteNavigate(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "navigate_to_url"),
		Parameters: map[string]interface{}{"url": "example.org"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.Output["url"] != "https://example.org" {
		t.Errorf("url output = %v", res.Output["url"])
	}
}

func TestExecuteScreenshotJPEGQuality(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "take_screenshot"),
		Parameters: map[string]interface{}{"format": "jpeg", "quality": int64(55)},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if d.shotOpts.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg", d.shotOpts.Format)
	}
	if d.shotOpts.Quality != 55 {
		t.Errorf("quality = %d, want 55", d.shotOpts.Quality)
	}
	if res.Output["format"] != "jpeg" {
		t.Errorf("format output = %v", res.Output["format"])
	}
}

func TestExecuteFocusHoverSelect(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()

	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "focus_element"),
		Parameters: map[string]interface{}{"selector": "#q"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted || d.focused != "#q" {
		t.Fatalf("focus: status = %s, focused = %q", res.Status, d.focused)
	}

	res = e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "hover_element"),
		Parameters: map[string]interface{}{"selector": "#menu"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted || d.hovered != "#menu" {
		t.Fatalf("hover: status = %s, hovered = %q", res.Status, d.hovered)
	}

	res = e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "select_option"),
		Parameters: map[string]interface{}{"selector": "#lang", "value": "Go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted || d.selected != "Go" {
		t.Fatalf("select: status = %s, selected = %q", res.Status, d.selected)
	}
	if res.Output["in"] != "#lang" {
		t.Errorf("output = %v", res.Output)
	}
}

func TestExecuteWaitForCondition(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "wait_for_condition"),
		Parameters: map[string]interface{}{"expression": "document.readyState === 'complete'"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.Output["met"] != true {
		t.Errorf("output = %v", res.Output)
	}

	d.condErr = errors.New("timeout after 1s waiting for condition")
	res = e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "wait_for_condition"),
		Parameters: map[string]interface{}{"expression": "window.done", "timeout_ms": int64(1000)},
		MaxRetries: 0,
	})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ErrorKind != KindTimeout {
		t.Errorf("error kind = %s, want timeout", res.ErrorKind)
	}
}

func TestExecuteElementQueries(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()

	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "extract_attributes"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("attributes: status = %s, error %s", res.Status, res.Error)
	}
	attrs, ok := res.Output["extracted"].(map[string]string)
	if !ok || attrs["type"] != "submit" {
		t.Errorf("attributes output = %v", res.Output["extracted"])
	}

	res = e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "extract_form"),
		Parameters: map[string]interface{}{},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("form: status = %s, error %s", res.Status, res.Error)
	}
	form, ok := res.Output["extracted"].(*browser.Form)
	if !ok || form.Method != "get" || len(form.Fields) != 1 {
		t.Errorf("form output = %v", res.Output["extracted"])
	}
	if res.Output["field_count"] != 1 {
		t.Errorf("field_count = %v", res.Output["field_count"])
	}

	res = e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "get_element_info"),
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("info: status = %s, error %s", res.Status, res.Error)
	}
	info, ok := res.Output["extracted"].(*browser.ElementDetails)
	if !ok || info.Tag != "button" || !info.Visible {
		t.Errorf("info output = %v", res.Output["extracted"])
	}
}

func TestExecuteMissingParamIsUsageError(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	cmd := *mustGet(t, "navigate_to_url")
	cmd.Fallbacks = nil
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{},
		MaxRetries: 2,
	})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if res.ErrorKind != KindUsage {
		t.Errorf("error kind = %s, want usage", res.ErrorKind)
	}
	// Usage errors must not burn the retry budget.
	if res.RetryCount != 0 {
		t.Errorf("retries = %d, want 0 for permanent error", res.RetryCount)
	}
}

func TestExecuteCreativeWithoutCollaborator(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	cmd := *mustGet(t, "click_element")
	cmd.Fallbacks = []command.Fallback{{Kind: command.FallbackCreativeAlternative}}
	// Primary fails once; the degraded wait-and-retry pass succeeds.
	d.clickErr = []error{errors.New("flaky")}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 for degraded creative pass", res.Confidence)
	}
}

type fixedCollaborator struct{}

func (fixedCollaborator) ProposeAlternative(_ context.Context, _ string, params map[string]interface{}, _ error) (map[string]interface{}, float64, error) {
	alt := map[string]interface{}{}
	for k, v := range params {
		alt[k] = v
	}
	alt["selector"] = "#alternative"
	return alt, 0.6, nil
}

func TestExecuteCreativeWithCollaborator(t *testing.T) {
	e := New(testConfig(), nil).UseCollaborator(fixedCollaborator{})
	d := newFakeDriver()
	cmd := *mustGet(t, "click_element")
	cmd.Fallbacks = []command.Fallback{{Kind: command.FallbackCreativeAlternative}}
	d.clickErr = []error{errors.New("flaky")}
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, error %s", res.Status, res.Error)
	}
	if res.Confidence != 0.6 {
		t.Errorf("confidence = %v, want collaborator feasibility", res.Confidence)
	}
}

func TestExecuteCustomConditionUnknownSkipped(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	cmd := *mustGet(t, "click_element")
	cmd.Preconditions = append(cmd.Preconditions,
		command.Precondition{Kind: command.PreCustomCondition, Name: "no_such_condition"})
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("unknown condition must be skipped, got %s: %s", res.Status, res.Error)
	}
}

func TestExecuteCustomConditionBlocks(t *testing.T) {
	e := New(testConfig(), nil)
	e.RegisterCondition("always_false", func(context.Context, Driver, map[string]interface{}) (bool, error) {
		return false, nil
	})
	d := newFakeDriver()
	cmd := *mustGet(t, "click_element")
	cmd.Preconditions = []command.Precondition{
		{Kind: command.PreCustomCondition, Name: "always_false"},
	}
	cmd.Fallbacks = nil
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    &cmd,
		Parameters: map[string]interface{}{"selector": "#go"},
		MaxRetries: 0,
	})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if d.clickCalls != 0 {
		t.Error("primary ran despite failed precondition")
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	e := New(testConfig(), nil)
	d := newFakeDriver()
	res := e.Execute(context.Background(), Request{
		Driver:     d,
		Command:    mustGet(t, "extract_text"),
		Parameters: map[string]interface{}{},
		MaxRetries: 0,
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Command != res.Command || back.Status != res.Status || back.Confidence != res.Confidence {
		t.Errorf("round trip diverged: %+v vs %+v", back, res)
	}
	if back.Output["extracted"] != "body text" {
		t.Errorf("output lost in round trip: %v", back.Output)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{E(KindUsage, "op", errors.New("bad")), KindUsage},
		{context.DeadlineExceeded, KindTimeout},
		{errors.New("websocket: close 1006"), KindTransport},
		{errors.New("navigation timeout exceeded"), KindTimeout},
		{errors.New("cdp session detached"), KindProtocol},
		{errors.New("element not found"), KindPage},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if IsTransient(E(KindValidation, "op", errors.New("x"))) {
		t.Error("validation errors must not be transient")
	}
	if !IsTransient(errors.New("element not found")) {
		t.Error("page errors are transient")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusTimedOut} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusExecuting, StatusApplyingFallback} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
