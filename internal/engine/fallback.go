package engine

import (
	"context"
	"fmt"

	"webpilot/internal/browser"
	"webpilot/internal/command"
	"webpilot/internal/perception"
)

// fallbackConfidence is the result confidence when a declared fallback
// strategy recovers the command.
const fallbackConfidence = 0.8

// applyFallbacks walks the command's recovery ladder in declaration
// order until one strategy produces a validated output.
func (e *Engine) applyFallbacks(ctx context.Context, req Request, lastErr error, res *Result) (map[string]interface{}, float64, error) {
	for _, fb := range req.Command.Fallbacks {
		if ctx.Err() != nil {
			return nil, 0, lastErr
		}

		res.FallbacksUsed = append(res.FallbacksUsed, string(fb.Kind))
		if e.emitter != nil {
			e.emitter.FallbackApplied(ctx, req.Command.Name, string(fb.Kind))
		}
		if e.metrics != nil {
			e.metrics.RecordFallback(req.Command.Name, string(fb.Kind))
		}

		out, conf, err := e.runFallback(ctx, req, fb, lastErr)
		if err == nil {
			if verr := e.validate(req.Command, out); verr != nil {
				err = verr
			} else {
				return out, conf, nil
			}
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

func (e *Engine) runFallback(ctx context.Context, req Request, fb command.Fallback, lastErr error) (map[string]interface{}, float64, error) {
	d := req.Driver
	name := req.Command.Name
	sel := stringParam(req.Parameters, "selector")

	switch fb.Kind {
	case command.FallbackWaitAndRetry:
		return e.waitAndRetry(ctx, req, fb.Attempts)

	case command.FallbackScrollToElement:
		if sel == "" {
			return nil, 0, Errorf(KindUsage, "scroll_to_element", "no selector to scroll to")
		}
		if err := d.ScrollIntoView(ctx, sel); err != nil {
			return nil, 0, E(KindPage, "scroll_to_element", err)
		}
		out, err := e.dispatch(ctx, d, name, req.Parameters)
		return out, fallbackConfidence, err

	case command.FallbackUseAlternativeSelector:
		if fb.Selector == "" {
			return nil, 0, Errorf(KindUsage, "use_alternative_selector", "no alternative selector declared")
		}
		params := cloneParams(req.Parameters)
		params["selector"] = fb.Selector
		out, err := e.dispatch(ctx, d, name, params)
		return out, fallbackConfidence, err

	case command.FallbackClickParentElement:
		if sel == "" {
			return nil, 0, Errorf(KindUsage, "click_parent_element", "no selector to climb from")
		}
		if err := d.ClickParent(ctx, sel); err != nil {
			return nil, 0, E(KindPage, "click_parent_element", err)
		}
		return map[string]interface{}{"success": true, "clicked": sel, "via": "parent"}, fallbackConfidence, nil

	case command.FallbackUseJavaScript:
		out, err := e.javascriptFallback(ctx, req)
		return out, fallbackConfidence, err

	case command.FallbackVisualDetection:
		out, err := e.visualDetection(ctx, req)
		return out, fallbackConfidence, err

	case command.FallbackForceClick:
		if sel == "" {
			return nil, 0, Errorf(KindUsage, "force_click", "no selector to click")
		}
		if err := d.ForceClick(ctx, sel); err != nil {
			return nil, 0, E(KindPage, "force_click", err)
		}
		return map[string]interface{}{"success": true, "clicked": sel, "forced": true}, fallbackConfidence, nil

	case command.FallbackClearAndType:
		text := stringParam(req.Parameters, "text")
		if sel == "" || text == "" {
			return nil, 0, Errorf(KindUsage, "clear_and_type", "selector and text are required")
		}
		if err := d.Clear(ctx, sel); err != nil {
			return nil, 0, E(KindPage, "clear_and_type", err)
		}
		if err := d.Type(ctx, sel, text, true); err != nil {
			return nil, 0, E(KindPage, "clear_and_type", err)
		}
		return map[string]interface{}{"typed": text, "into": sel, "cleared_first": true}, fallbackConfidence, nil

	case command.FallbackRefreshAndRetry:
		if err := d.Refresh(ctx); err != nil {
			return nil, 0, E(KindPage, "refresh_and_retry", err)
		}
		out, err := e.dispatch(ctx, d, name, req.Parameters)
		return out, fallbackConfidence, err

	case command.FallbackCreativeAlternative:
		if e.collab == nil {
			// Without a collaborator this degrades to a single
			// wait-and-retry pass.
			return e.waitAndRetry(ctx, req, 1)
		}
		params, feasibility, err := e.collab.ProposeAlternative(ctx, name, req.Parameters, lastErr)
		if err != nil {
			return nil, 0, E(KindPage, "creative_alternative", err)
		}
		out, err := e.dispatch(ctx, d, name, params)
		return out, feasibility, err

	default:
		return nil, 0, Errorf(KindUsage, "fallback", "unknown strategy %q", fb.Kind)
	}
}

// waitAndRetry re-runs the primary dispatch up to n times with the
// standard retry delays between attempts.
func (e *Engine) waitAndRetry(ctx context.Context, req Request, attempts int) (map[string]interface{}, float64, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := sleepWithContext(ctx, e.retryDelay(i+1)); err != nil {
			return nil, 0, err
		}
		out, err := e.dispatch(ctx, req.Driver, req.Command.Name, req.Parameters)
		if err == nil {
			return out, fallbackConfidence, nil
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

// javascriptFallback reimplements a handful of commands through page
// script injection, bypassing input emulation entirely.
func (e *Engine) javascriptFallback(ctx context.Context, req Request) (map[string]interface{}, error) {
	d := req.Driver
	sel := stringParam(req.Parameters, "selector")

	switch req.Command.Name {
	case "click_element":
		if sel == "" {
			return nil, Errorf(KindUsage, "use_javascript", "no selector to click")
		}
		if err := d.ClickWithJS(ctx, sel); err != nil {
			return nil, E(KindPage, "use_javascript", err)
		}
		return map[string]interface{}{"success": true, "clicked": sel, "clicked_via_js": true}, nil

	case "input_text":
		text := stringParam(req.Parameters, "text")
		if sel == "" || text == "" {
			return nil, Errorf(KindUsage, "use_javascript", "selector and text are required")
		}
		js := fmt.Sprintf(`() => {
			const el = document.querySelector('%s');
			if (!el) return false;
			el.value = '%s';
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}`, browser.EscapeJSString(sel), browser.EscapeJSString(text))
		res, err := d.Eval(ctx, js)
		if err != nil {
			return nil, E(KindPage, "use_javascript", err)
		}
		if ok, _ := res.(bool); !ok {
			return nil, Errorf(KindPage, "use_javascript", "element %q not found", sel)
		}
		return map[string]interface{}{"typed": text, "into": sel, "via_js": true}, nil

	case "clear_input":
		if sel == "" {
			return nil, Errorf(KindUsage, "use_javascript", "no selector to clear")
		}
		js := fmt.Sprintf(`() => {
			const el = document.querySelector('%s');
			if (!el) return false;
			el.value = '';
			el.dispatchEvent(new Event('input', { bubbles: true }));
			return true;
		}`, browser.EscapeJSString(sel))
		res, err := d.Eval(ctx, js)
		if err != nil {
			return nil, E(KindPage, "use_javascript", err)
		}
		if ok, _ := res.(bool); !ok {
			return nil, Errorf(KindPage, "use_javascript", "element %q not found", sel)
		}
		return map[string]interface{}{"cleared": sel, "via_js": true}, nil

	case "extract_text":
		text, err := d.ExtractText(ctx, "")
		if err != nil {
			return nil, E(KindPage, "use_javascript", err)
		}
		return map[string]interface{}{"extracted": text}, nil

	case "extract_links":
		links, err := d.ExtractLinks(ctx)
		if err != nil {
			return nil, E(KindPage, "use_javascript", err)
		}
		return map[string]interface{}{"extracted": links, "count": len(links)}, nil

	default:
		return nil, Errorf(KindUsage, "use_javascript", "no script path for %q", req.Command.Name)
	}
}

// visualDetection locates the target by its visible text and retries
// the primary dispatch against the discovered selector.
func (e *Engine) visualDetection(ctx context.Context, req Request) (map[string]interface{}, error) {
	if e.analyzer == nil {
		return nil, Errorf(KindUsage, "visual_element_detection", "page analysis unavailable")
	}
	page, ok := req.Driver.(perception.Page)
	if !ok {
		return nil, Errorf(KindUsage, "visual_element_detection", "driver does not expose page evaluation")
	}

	needle := stringParam(req.Parameters, "text")
	if needle == "" {
		needle = stringParam(req.Parameters, "selector")
	}
	if needle == "" {
		return nil, Errorf(KindUsage, "visual_element_detection", "nothing to search for")
	}

	matches, err := e.analyzer.FindByText(ctx, page, needle)
	if err != nil {
		return nil, E(KindPage, "visual_element_detection", err)
	}
	if len(matches) == 0 {
		return nil, Errorf(KindPage, "visual_element_detection", "no element with text %q", needle)
	}

	params := cloneParams(req.Parameters)
	params["selector"] = matches[0].Selector
	return e.dispatch(ctx, req.Driver, req.Command.Name, params)
}
