package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webpilot/internal/config"
)

// Session is a live page on a pooled browser. All automation operations
// the execution engine needs run through it.
type Session struct {
	ID string

	cfg     config.BrowserConfig
	logger  *zap.Logger
	browser *rod.Browser
	page    *rod.Page

	createdAt time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// SessionInfo is lightweight metadata about a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

func newSession(cfg config.BrowserConfig, logger *zap.Logger, browser *rod.Browser, page *rod.Page) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		cfg:        cfg,
		logger:     logger.With(zap.String("session", id)),
		browser:    browser,
		page:       page,
		createdAt:  time.Now(),
		lastActive: time.Now(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Page exposes the underlying Rod page for specialized callers.
func (s *Session) Page() *rod.Page { return s.page }

// Info returns current metadata for the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	last := s.lastActive
	s.mu.Unlock()

	info := SessionInfo{ID: s.ID, CreatedAt: s.createdAt, LastActive: last}
	if target, err := s.page.Info(); err == nil {
		info.URL = target.URL
		info.Title = target.Title
	}
	return info
}

// Navigate loads a URL with bounded retries. The target is normalized
// first so bare hosts work. Load waiting is best-effort: a page that
// keeps a request open forever should not fail the navigation.
func (s *Session) Navigate(ctx context.Context, rawURL string) (string, error) {
	target := NormalizeURL(rawURL)
	retries := s.cfg.GetNavigationRetries()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeoutDuration()).Navigate(target)
		if err == nil {
			if loadErr := s.page.Timeout(s.cfg.PageLoadTimeoutDuration()).WaitLoad(); loadErr != nil {
				s.logger.Debug("load wait incomplete, continuing",
					zap.String("url", target), zap.Error(loadErr))
			}
			_ = sleepWithContext(ctx, s.cfg.QuiesceDelayDuration())
			s.verifyDomain(target)
			s.touch()
			return s.CurrentURL(), nil
		}

		lastErr = err
		s.logger.Warn("navigation attempt failed",
			zap.String("url", target), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < retries {
			if err := sleepWithContext(ctx, s.cfg.NavigationRetryDelayDuration()); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("navigate to %s after %d attempts: %w", target, retries, lastErr)
}

// verifyDomain warns when the page landed somewhere other than the
// requested domain (redirect chains, captive portals).
func (s *Session) verifyDomain(target string) {
	want := ExtractDomain(target)
	if want == "" {
		return
	}
	info, err := s.page.Info()
	if err != nil {
		return
	}
	if !strings.Contains(info.URL, want) {
		s.logger.Warn("landed on unexpected domain",
			zap.String("requested", target), zap.String("actual", info.URL))
	}
}

// CurrentURL returns the page URL, empty string when unavailable.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns the page title.
func (s *Session) Title() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

// Find locates an element with bounded retries. Each attempt is a single
// non-blocking lookup so a missing element fails fast per attempt.
func (s *Session) Find(ctx context.Context, selector string) (*rod.Element, error) {
	retries := s.cfg.GetFindRetries()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		el, err := s.page.Context(ctx).Sleeper(rod.NotFoundSleeper).Element(selector)
		if err == nil {
			s.touch()
			return el, nil
		}
		lastErr = err
		if attempt < retries {
			if err := sleepWithContext(ctx, s.cfg.FindRetryDelayDuration()); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("element %q not found after %d attempts: %w", selector, retries, lastErr)
}

// Exists reports whether the selector matches anything right now.
func (s *Session) Exists(selector string) bool {
	has, _, err := s.page.Has(selector)
	return err == nil && has
}

// Visible reports whether the first match is rendered.
func (s *Session) Visible(selector string) bool {
	has, el, err := s.page.Has(selector)
	if err != nil || !has {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

// Clickable reports whether the first match can receive pointer events.
func (s *Session) Clickable(selector string) bool {
	has, el, err := s.page.Has(selector)
	if err != nil || !has {
		return false
	}
	if visible, err := el.Visible(); err != nil || !visible {
		return false
	}
	_, err = el.Interactable()
	return err == nil
}

// Click finds an element and clicks it with a real mouse event.
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click("left", 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// ClickWithJS clicks via the page's own querySelector, bypassing pointer
// interception by overlays.
func (s *Session) ClickWithJS(ctx context.Context, selector string) error {
	js := fmt.Sprintf(`() => {
		const el = document.querySelector('%s');
		if (!el) return false;
		el.click();
		return true;
	}`, EscapeJSString(selector))

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("js click %q: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("js click %q: element not found", selector)
	}
	s.touch()
	return nil
}

// ClickParent clicks the parent of the matched element. Useful when the
// visible target wraps the actual interactive node.
func (s *Session) ClickParent(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	parent, err := el.Parent()
	if err != nil {
		return fmt.Errorf("parent of %q: %w", selector, err)
	}
	if err := parent.Click("left", 1); err != nil {
		return fmt.Errorf("click parent of %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// ForceClick dispatches a click directly on the element, ignoring
// visibility and hit-testing.
func (s *Session) ForceClick(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("force click %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// ScrollIntoView scrolls the matched element into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %q: %w", selector, err)
	}
	return nil
}

// ScrollBy scrolls the window by the given pixel offsets.
func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	js := fmt.Sprintf(`() => window.scrollBy(%d, %d)`, dx, dy)
	if _, err := s.page.Context(ctx).Eval(js); err != nil {
		return fmt.Errorf("scroll by (%d,%d): %w", dx, dy, err)
	}
	return nil
}

// Type enters text into an element using real keyboard events. When clear
// is set the existing value is selected and removed first.
func (s *Session) Type(ctx context.Context, selector, text string, clear bool) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if clear {
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// Clear empties the value of an input element.
func (s *Session) Clear(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	s.touch()
	return nil
}

// InputValue reads the current value property of an input element.
func (s *Session) InputValue(ctx context.Context, selector string) (string, error) {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	prop, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("value of %q: %w", selector, err)
	}
	return prop.Str(), nil
}

// keyFromName resolves a key name to its CDP key. Unrecognized names
// of a single rune press that character.
func keyFromName(key string) (input.Key, error) {
	switch strings.ToLower(key) {
	case "enter", "return":
		return input.Enter, nil
	case "tab":
		return input.Tab, nil
	case "escape", "esc":
		return input.Escape, nil
	case "backspace":
		return input.Backspace, nil
	case "delete", "del":
		return input.Delete, nil
	case "space":
		return input.Space, nil
	case "arrowdown", "down":
		return input.ArrowDown, nil
	case "arrowup", "up":
		return input.ArrowUp, nil
	case "arrowleft", "left":
		return input.ArrowLeft, nil
	case "arrowright", "right":
		return input.ArrowRight, nil
	case "pagedown":
		return input.PageDown, nil
	case "pageup":
		return input.PageUp, nil
	default:
		runes := []rune(key)
		if len(runes) != 1 {
			return 0, fmt.Errorf("unknown key %q", key)
		}
		return input.Key(runes[0]), nil
	}
}

// PressKey sends a named key to the focused element.
func (s *Session) PressKey(ctx context.Context, key string) error {
	k, err := keyFromName(key)
	if err != nil {
		return err
	}
	if err := s.page.Keyboard.Press(k); err != nil {
		return fmt.Errorf("press %q: %w", key, err)
	}
	s.touch()
	return nil
}

// WaitForElement polls until the selector matches, or the timeout lapses.
func (s *Session) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if s.Exists(selector) {
			s.touch()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout after %s waiting for element %q", timeout, selector)
		}
		if err := sleepWithContext(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}

// Focus moves keyboard focus to the matched element.
func (s *Session) Focus(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// Hover moves the pointer over the matched element, firing its
// mouseover handlers.
func (s *Session) Hover(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("hover %q: %w", selector, err)
	}
	s.touch()
	return nil
}

// SelectOption picks an option in a select element, matching the
// option's value first and falling back to its visible label. Fires
// input and change so framework bindings see the update.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	if _, err := s.Find(ctx, selector); err != nil {
		return err
	}
	js := fmt.Sprintf(`() => {
		const el = document.querySelector('%s');
		if (!el || !el.options) return false;
		const want = '%s';
		for (const opt of el.options) {
			if (opt.value === want || opt.textContent.trim() === want) {
				el.value = opt.value;
				el.dispatchEvent(new Event('input', { bubbles: true }));
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	}`, EscapeJSString(selector), EscapeJSString(value))

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("select option in %q: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("select option in %q: no option matches %q", selector, value)
	}
	s.touch()
	return nil
}

// WaitForCondition polls a JavaScript expression until it is truthy,
// or the timeout lapses.
func (s *Session) WaitForCondition(ctx context.Context, expr string, timeout time.Duration) error {
	js := fmt.Sprintf(`() => !!(%s)`, expr)
	deadline := time.Now().Add(timeout)
	for {
		res, err := s.page.Context(ctx).Eval(js)
		if err == nil && res.Value.Bool() {
			s.touch()
			return nil
		}
		if err != nil {
			return fmt.Errorf("condition eval: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout after %s waiting for condition", timeout)
		}
		if err := sleepWithContext(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}

// GoBack navigates one entry back in session history.
func (s *Session) GoBack(ctx context.Context) error {
	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	_ = s.page.Timeout(s.cfg.PageLoadTimeoutDuration()).WaitLoad()
	s.touch()
	return nil
}

// Refresh reloads the current page.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	_ = s.page.Timeout(s.cfg.PageLoadTimeoutDuration()).WaitLoad()
	s.touch()
	return nil
}

// ScreenshotOptions controls capture format and destination.
type ScreenshotOptions struct {
	FullPage bool
	Format   string // "png" (default) or "jpeg"
	Quality  int    // jpeg only, 1-100
	SavePath string // generated under the configured dir when empty
}

// ScreenshotResult describes a captured image on disk.
type ScreenshotResult struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	SizeBytes int    `json:"size_bytes"`
}

// Screenshot captures the page and writes it to disk.
func (s *Session) Screenshot(ctx context.Context, opts ScreenshotOptions) (*ScreenshotResult, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "png"
	}
	quality := opts.Quality
	if quality < 1 {
		quality = 90
	}
	if quality > 100 {
		quality = 100
	}

	screenshotFormat := proto.PageCaptureScreenshotFormatPng
	req := &proto.PageCaptureScreenshot{Format: screenshotFormat}
	if format == "jpeg" {
		screenshotFormat = proto.PageCaptureScreenshotFormatJpeg
		req.Format = screenshotFormat
		req.Quality = &quality
	}

	imgData, err := s.page.Context(ctx).Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}

	savePath := opts.SavePath
	if savePath == "" {
		ext := "png"
		if format == "jpeg" {
			ext = "jpg"
		}
		name := fmt.Sprintf("screenshot_%s_%d.%s", uuid.NewString()[:8], time.Now().Unix(), ext)
		savePath = filepath.Join(s.cfg.GetScreenshotDir(), name)
	}

	if dir := filepath.Dir(savePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create screenshot dir: %w", err)
		}
	}
	if err := os.WriteFile(savePath, imgData, 0644); err != nil {
		return nil, fmt.Errorf("write screenshot: %w", err)
	}

	s.touch()
	return &ScreenshotResult{Path: savePath, Format: format, SizeBytes: len(imgData)}, nil
}

// Eval runs a JavaScript function in the page and returns its value.
func (s *Session) Eval(ctx context.Context, js string) (interface{}, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	s.touch()
	return res.Value.Val(), nil
}

// IsConnected reports whether the underlying page still answers CDP
// calls. Best-effort: a false result means the session is unusable, a
// true result is no guarantee the next call succeeds.
func (s *Session) IsConnected() bool {
	if s.page == nil {
		return false
	}
	_, err := s.page.Info()
	return err == nil
}

// Close releases the page. The owning manager returns the browser to
// the pool separately.
func (s *Session) Close() error {
	if s.page == nil {
		return nil
	}
	return s.page.Close()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
