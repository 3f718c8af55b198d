package engine

import (
	"context"
	"time"

	"webpilot/internal/browser"
	"webpilot/internal/perception"
)

// dispatch runs one primary attempt of a command and shapes its
// output. Output field names are stable; success criteria and plan
// context propagation read them by name.
func (e *Engine) dispatch(ctx context.Context, d Driver, name string, params map[string]interface{}) (map[string]interface{}, error) {
	switch name {
	case "navigate_to_url":
		rawURL := stringParam(params, "url")
		if rawURL == "" {
			return nil, Errorf(KindUsage, "navigate_to_url", "url parameter is required")
		}
		finalURL, err := d.Navigate(ctx, rawURL)
		if err != nil {
			return nil, E(KindPage, "navigate_to_url", err)
		}
		return map[string]interface{}{"navigated": true, "url": finalURL}, nil

	case "click_element":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "click_element", "selector parameter is required")
		}
		if err := d.Click(ctx, sel); err != nil {
			return nil, E(KindPage, "click_element", err)
		}
		return map[string]interface{}{"success": true, "clicked": sel}, nil

	case "input_text":
		sel := stringParam(params, "selector")
		text := stringParam(params, "text")
		if sel == "" || text == "" {
			return nil, Errorf(KindUsage, "input_text", "selector and text parameters are required")
		}
		clear := boolParam(params, "clear_first", true)
		if err := d.Type(ctx, sel, text, clear); err != nil {
			return nil, E(KindPage, "input_text", err)
		}
		return map[string]interface{}{"typed": text, "into": sel}, nil

	case "clear_input":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "clear_input", "selector parameter is required")
		}
		if err := d.Clear(ctx, sel); err != nil {
			return nil, E(KindPage, "clear_input", err)
		}
		return map[string]interface{}{"cleared": sel}, nil

	case "press_key":
		key := stringParam(params, "key")
		if key == "" {
			return nil, Errorf(KindUsage, "press_key", "key parameter is required")
		}
		if err := d.PressKey(ctx, key); err != nil {
			return nil, E(KindPage, "press_key", err)
		}
		return map[string]interface{}{"pressed": key}, nil

	case "focus_element":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "focus_element", "selector parameter is required")
		}
		if err := d.Focus(ctx, sel); err != nil {
			return nil, E(KindPage, "focus_element", err)
		}
		return map[string]interface{}{"focused": sel}, nil

	case "hover_element":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "hover_element", "selector parameter is required")
		}
		if err := d.Hover(ctx, sel); err != nil {
			return nil, E(KindPage, "hover_element", err)
		}
		return map[string]interface{}{"hovered": sel}, nil

	case "select_option":
		sel := stringParam(params, "selector")
		value := stringParam(params, "value")
		if sel == "" || value == "" {
			return nil, Errorf(KindUsage, "select_option", "selector and value parameters are required")
		}
		if err := d.SelectOption(ctx, sel, value); err != nil {
			return nil, E(KindPage, "select_option", err)
		}
		return map[string]interface{}{"selected": value, "in": sel}, nil

	case "wait_for_element":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "wait_for_element", "selector parameter is required")
		}
		timeout := time.Duration(intParam(params, "timeout_ms", 10000)) * time.Millisecond
		if err := d.WaitForElement(ctx, sel, timeout); err != nil {
			return nil, E(KindTimeout, "wait_for_element", err)
		}
		return map[string]interface{}{"found": sel}, nil

	case "wait_for_condition":
		expr := stringParam(params, "expression")
		if expr == "" {
			return nil, Errorf(KindUsage, "wait_for_condition", "expression parameter is required")
		}
		timeout := time.Duration(intParam(params, "timeout_ms", 10000)) * time.Millisecond
		if err := d.WaitForCondition(ctx, expr, timeout); err != nil {
			return nil, E(KindTimeout, "wait_for_condition", err)
		}
		return map[string]interface{}{"met": true, "expression": expr}, nil

	case "extract_text":
		sel := stringParam(params, "selector")
		text, err := d.ExtractText(ctx, sel)
		if err != nil {
			return nil, E(KindPage, "extract_text", err)
		}
		out := map[string]interface{}{"extracted": text}
		if sel != "" {
			out["selector"] = sel
		}
		return out, nil

	case "extract_links":
		links, err := d.ExtractLinks(ctx)
		if err != nil {
			return nil, E(KindPage, "extract_links", err)
		}
		return map[string]interface{}{"extracted": links, "count": len(links)}, nil

	case "extract_images":
		images, err := d.ExtractImages(ctx)
		if err != nil {
			return nil, E(KindPage, "extract_images", err)
		}
		return map[string]interface{}{"extracted": images, "count": len(images)}, nil

	case "extract_tables":
		tables, err := d.ExtractTables(ctx)
		if err != nil {
			return nil, E(KindPage, "extract_tables", err)
		}
		return map[string]interface{}{"extracted": tables, "count": len(tables)}, nil

	case "extract_attributes":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "extract_attributes", "selector parameter is required")
		}
		attrs, err := d.ExtractAttributes(ctx, sel)
		if err != nil {
			return nil, E(KindPage, "extract_attributes", err)
		}
		return map[string]interface{}{"extracted": attrs, "selector": sel, "count": len(attrs)}, nil

	case "extract_form":
		sel := stringParam(params, "selector")
		form, err := d.ExtractForm(ctx, sel)
		if err != nil {
			return nil, E(KindPage, "extract_form", err)
		}
		return map[string]interface{}{"extracted": form, "field_count": len(form.Fields)}, nil

	case "get_element_info":
		sel := stringParam(params, "selector")
		if sel == "" {
			return nil, Errorf(KindUsage, "get_element_info", "selector parameter is required")
		}
		info, err := d.ElementInfo(ctx, sel)
		if err != nil {
			return nil, E(KindPage, "get_element_info", err)
		}
		return map[string]interface{}{"extracted": info, "selector": sel}, nil

	case "take_screenshot":
		opts := browser.ScreenshotOptions{
			FullPage: boolParam(params, "full_page", false),
			Format:   stringParam(params, "format"),
		}
		if q := intParam(params, "quality", 0); q > 0 && q <= 100 {
			opts.Quality = int(q)
		}
		shot, err := d.Screenshot(ctx, opts)
		if err != nil {
			return nil, E(KindPage, "take_screenshot", err)
		}
		return map[string]interface{}{
			"screenshot": shot.Path,
			"format":     shot.Format,
			"size_bytes": shot.SizeBytes,
		}, nil

	case "analyze_page":
		if e.analyzer == nil {
			return nil, Errorf(KindUsage, "analyze_page", "page analysis unavailable")
		}
		page, ok := d.(perception.Page)
		if !ok {
			return nil, Errorf(KindUsage, "analyze_page", "driver does not expose page evaluation")
		}
		mode := stringParam(params, "mode")
		findSearch := boolParam(params, "find_search", false)
		analysis, err := e.analyzer.AnalyzePage(ctx, page, mode, findSearch)
		if err != nil {
			return nil, E(KindPage, "analyze_page", err)
		}
		out := map[string]interface{}{"analysis": analysis, "mode": analysis.Mode}
		if analysis.SearchInput != "" {
			out["search_input"] = analysis.SearchInput
		}
		return out, nil

	case "scroll_page":
		pixels := int(intParam(params, "pixels", 600))
		if err := d.ScrollBy(ctx, 0, pixels); err != nil {
			return nil, E(KindPage, "scroll_page", err)
		}
		return map[string]interface{}{"scrolled": pixels}, nil

	case "go_back":
		if err := d.GoBack(ctx); err != nil {
			return nil, E(KindPage, "go_back", err)
		}
		return map[string]interface{}{"navigated": true, "url": d.CurrentURL()}, nil

	case "refresh_page":
		if err := d.Refresh(ctx); err != nil {
			return nil, E(KindPage, "refresh_page", err)
		}
		return map[string]interface{}{"navigated": true, "url": d.CurrentURL()}, nil

	default:
		return nil, Errorf(KindUsage, "dispatch", "unknown command %q", name)
	}
}

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

func intParam(params map[string]interface{}, key string, def int64) int64 {
	switch v := params[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return def
	}
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
