package mcp

import (
	"context"
	"fmt"
)

// NavigateTool drives navigate_to_url through the engine.
type NavigateTool struct {
	server *Server
}

func (t *NavigateTool) Name() string { return "navigate" }
func (t *NavigateTool) Description() string {
	return `Navigate a session to a URL.

Bare domains are accepted; "example.com" becomes "https://example.com".
Navigation is retried and falls back to a refresh when the page stalls.`
}
func (t *NavigateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Destination URL",
			},
			"session_id": sessionIDProperty(),
		},
		"required": []string{"url"},
	}
}
func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	return t.server.runCommand(ctx, args, "navigate_to_url", map[string]interface{}{"url": url})
}

// ClickTool drives click_element with its full fallback ladder.
type ClickTool struct {
	server *Server
}

func (t *ClickTool) Name() string { return "click" }
func (t *ClickTool) Description() string {
	return `Click an element by CSS selector.

When the plain click fails the engine walks the fallback ladder:
scroll into view, wait and retry, JavaScript click, visual text
match, then the clickable parent.`
}
func (t *ClickTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element to click",
			},
			"session_id": sessionIDProperty(),
		},
		"required": []string{"selector"},
	}
}
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector := getStringArg(args, "selector")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}
	return t.server.runCommand(ctx, args, "click_element", map[string]interface{}{"selector": selector})
}

// TypeTextTool drives input_text.
type TypeTextTool struct {
	server *Server
}

func (t *TypeTextTool) Name() string { return "type_text" }
func (t *TypeTextTool) Description() string {
	return `Type text into an input element.

The field is cleared first unless clear_first is false. Falls back to
setting the value via JavaScript when direct input fails.`
}
func (t *TypeTextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the input",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type",
			},
			"clear_first": map[string]interface{}{
				"type":        "boolean",
				"description": "Clear the field before typing (default true)",
			},
			"session_id": sessionIDProperty(),
		},
		"required": []string{"selector", "text"},
	}
}
func (t *TypeTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector := getStringArg(args, "selector")
	text := getStringArg(args, "text")
	if selector == "" || text == "" {
		return nil, fmt.Errorf("selector and text are required")
	}
	return t.server.runCommand(ctx, args, "input_text", map[string]interface{}{
		"selector":    selector,
		"text":        text,
		"clear_first": getBoolArg(args, "clear_first", true),
	})
}

// PressKeyTool drives press_key.
type PressKeyTool struct {
	server *Server
}

func (t *PressKeyTool) Name() string { return "press_key" }
func (t *PressKeyTool) Description() string {
	return `Press a keyboard key on the focused element.

Supported names: enter, tab, escape, backspace, delete, space,
pageup, pagedown, and the arrow keys (arrowup, arrowdown,
arrowleft, arrowright). A single character presses that key.`
}
func (t *PressKeyTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Key name, e.g. enter",
			},
			"session_id": sessionIDProperty(),
		},
		"required": []string{"key"},
	}
}
func (t *PressKeyTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	key := getStringArg(args, "key")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	return t.server.runCommand(ctx, args, "press_key", map[string]interface{}{"key": key})
}

// WaitForTool drives wait_for_element.
type WaitForTool struct {
	server *Server
}

func (t *WaitForTool) Name() string { return "wait_for" }
func (t *WaitForTool) Description() string {
	return `Wait until an element appears on the page.

Times out after timeout_ms (default 10000). A refresh-and-retry
fallback handles pages that stall mid-load.`
}
func (t *WaitForTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector to wait for",
			},
			"timeout_ms": map[string]interface{}{
				"type":        "integer",
				"description": "How long to wait in milliseconds (default 10000)",
			},
			"session_id": sessionIDProperty(),
		},
		"required": []string{"selector"},
	}
}
func (t *WaitForTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector := getStringArg(args, "selector")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}
	params := map[string]interface{}{"selector": selector}
	if ms := getIntArg(args, "timeout_ms", 0); ms > 0 {
		params["timeout_ms"] = int64(ms)
	}
	return t.server.runCommand(ctx, args, "wait_for_element", params)
}

// ExtractTool maps a data type onto the matching extract command.
type ExtractTool struct {
	server *Server
}

func (t *ExtractTool) Name() string { return "extract" }
func (t *ExtractTool) Description() string {
	return `Extract structured data from the current page.

data_type picks what to pull:
- text: visible text (optionally scoped by selector)
- links: all anchors as {text, href}
- images: all images as {src, alt}
- tables: all tables as {headers, rows}
- attributes: attribute map of the first selector match
- form: action, method and fields of a form
- element: tag, text, attributes and bounding box of the first match`
}
func (t *ExtractTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"text", "links", "images", "tables", "attributes", "form", "element"},
				"description": "What to extract (default text)",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector scoping the extraction; required for attributes and element",
			},
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *ExtractTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	commandName := "extract_text"
	switch getStringArg(args, "data_type") {
	case "", "text":
	case "links":
		commandName = "extract_links"
	case "images":
		commandName = "extract_images"
	case "tables":
		commandName = "extract_tables"
	case "attributes":
		commandName = "extract_attributes"
	case "form":
		commandName = "extract_form"
	case "element":
		commandName = "get_element_info"
	default:
		return nil, fmt.Errorf("unknown data_type: %s", getStringArg(args, "data_type"))
	}

	params := map[string]interface{}{}
	if sel := getStringArg(args, "selector"); sel != "" {
		switch commandName {
		case "extract_text", "extract_attributes", "extract_form", "get_element_info":
			params["selector"] = sel
		}
	}
	return t.server.runCommand(ctx, args, commandName, params)
}

// ScreenshotTool drives take_screenshot.
type ScreenshotTool struct {
	server *Server
}

func (t *ScreenshotTool) Name() string { return "screenshot" }
func (t *ScreenshotTool) Description() string {
	return `Capture a screenshot of the current page.

Saved to the configured screenshot directory; the result carries the
file path. full_page captures beyond the viewport.`
}
func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scroll height (default false)",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"png", "jpeg"},
				"description": "Image format (default png)",
			},
			"quality": map[string]interface{}{
				"type":        "integer",
				"description": "JPEG quality 1-100 (default 90)",
			},
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	params := map[string]interface{}{
		"full_page": getBoolArg(args, "full_page", false),
	}
	if format := getStringArg(args, "format"); format != "" {
		params["format"] = format
	}
	if q := getIntArg(args, "quality", 0); q > 0 {
		params["quality"] = int64(q)
	}
	return t.server.runCommand(ctx, args, "take_screenshot", params)
}

// AnalyzePageTool drives analyze_page.
type AnalyzePageTool struct {
	server *Server
}

func (t *AnalyzePageTool) Name() string { return "analyze_page" }
func (t *AnalyzePageTool) Description() string {
	return `Survey the current page structure without reading the full DOM.

Modes:
- quick: URL and title only
- standard: adds link, form, button, and input counts
- deep: adds key interactive elements with selectors, and headings

Set find_search to also locate the page's search input.`
}
func (t *AnalyzePageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"quick", "standard", "deep"},
				"description": "Analysis depth (default standard)",
			},
			"find_search": map[string]interface{}{
				"type":        "boolean",
				"description": "Also locate a search input selector",
			},
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *AnalyzePageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	params := map[string]interface{}{}
	if mode := getStringArg(args, "mode"); mode != "" {
		params["mode"] = mode
	}
	if getBoolArg(args, "find_search", false) {
		params["find_search"] = true
	}
	return t.server.runCommand(ctx, args, "analyze_page", params)
}

// ScrollTool drives scroll_page.
type ScrollTool struct {
	server *Server
}

func (t *ScrollTool) Name() string { return "scroll" }
func (t *ScrollTool) Description() string {
	return `Scroll the page vertically by a pixel amount.

Positive pixels scroll down, negative scroll up. Default 600.`
}
func (t *ScrollTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pixels": map[string]interface{}{
				"type":        "integer",
				"description": "Vertical scroll distance in pixels (default 600)",
			},
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *ScrollTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	params := map[string]interface{}{}
	if px := getIntArg(args, "pixels", 0); px != 0 {
		params["pixels"] = int64(px)
	}
	return t.server.runCommand(ctx, args, "scroll_page", params)
}

// GoBackTool drives go_back.
type GoBackTool struct {
	server *Server
}

func (t *GoBackTool) Name() string { return "go_back" }
func (t *GoBackTool) Description() string {
	return "Navigate back in the session's history."
}
func (t *GoBackTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *GoBackTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.server.runCommand(ctx, args, "go_back", nil)
}

// RefreshTool drives refresh_page.
type RefreshTool struct {
	server *Server
}

func (t *RefreshTool) Name() string { return "refresh" }
func (t *RefreshTool) Description() string {
	return "Reload the session's current page."
}
func (t *RefreshTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": sessionIDProperty(),
		},
	}
}
func (t *RefreshTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.server.runCommand(ctx, args, "refresh_page", nil)
}
