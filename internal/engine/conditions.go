package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"webpilot/internal/command"
	"webpilot/internal/facts"
)

const (
	animationSettleDelay = 500 * time.Millisecond
	networkIdleDelay     = time.Second
)

// checkPreconditions evaluates the command's gates in order, stopping
// at the first failure. Unknown custom conditions are logged and
// skipped rather than failing the command.
func (e *Engine) checkPreconditions(ctx context.Context, req Request) error {
	d := req.Driver
	sel := stringParam(req.Parameters, "selector")

	for _, pre := range req.Command.Preconditions {
		switch pre.Kind {
		case command.PrePageLoaded:
			title, err := d.Title()
			if err != nil {
				return E(KindPage, "precondition page_loaded", err)
			}
			if title == "" {
				return Errorf(KindPage, "precondition page_loaded", "page has no title")
			}

		case command.PreElementExists:
			if sel != "" && !d.Exists(sel) {
				return Errorf(KindPage, "precondition element_exists", "no element matches %q", sel)
			}

		case command.PreElementVisible:
			if sel != "" && !d.Visible(sel) {
				return Errorf(KindPage, "precondition element_visible", "element %q is not visible", sel)
			}

		case command.PreElementClickable:
			if sel != "" && !d.Clickable(sel) {
				return Errorf(KindPage, "precondition element_clickable", "element %q is not clickable", sel)
			}

		case command.PreURLMatches:
			if pre.Pattern != "" && !strings.Contains(d.CurrentURL(), pre.Pattern) {
				return Errorf(KindPage, "precondition url_matches", "current url does not contain %q", pre.Pattern)
			}

		case command.PreNoActiveAnimations:
			if err := sleepWithContext(ctx, animationSettleDelay); err != nil {
				return err
			}

		case command.PreNetworkIdle:
			if err := sleepWithContext(ctx, networkIdleDelay); err != nil {
				return err
			}

		case command.PreCustomCondition:
			fn, ok := e.conditions[pre.Name]
			if !ok {
				e.logger.Warn("unknown custom condition, skipping", zap.String("condition", pre.Name))
				continue
			}
			ok, err := fn(ctx, d, req.Parameters)
			if err != nil {
				return E(KindPage, "precondition "+pre.Name, err)
			}
			if !ok {
				return Errorf(KindPage, "precondition "+pre.Name, "condition not met")
			}

		default:
			e.logger.Warn("unknown precondition kind, skipping", zap.String("kind", string(pre.Kind)))
		}
	}
	return nil
}

// validate checks the command's success criteria against the output.
// Unknown custom criteria are logged and skipped.
func (e *Engine) validate(cmd *command.Command, output map[string]interface{}) error {
	for _, crit := range cmd.SuccessCriteria {
		switch crit.Kind {
		case command.CritPageNavigated:
			if !truthy(output["navigated"]) && stringField(output, "url") == "" {
				return Errorf(KindValidation, "criterion page_navigated", "output reports no navigation")
			}

		case command.CritElementClicked:
			if stringField(output, "clicked") == "" {
				return Errorf(KindValidation, "criterion element_clicked", "output reports no click")
			}

		case command.CritTextEntered:
			if stringField(output, "typed") == "" {
				return Errorf(KindValidation, "criterion text_entered", "output reports no typed text")
			}

		case command.CritElementFound:
			if stringField(output, "found") == "" {
				return Errorf(KindValidation, "criterion element_found", "output reports no element")
			}

		case command.CritValueExtracted:
			if v, ok := output["extracted"]; !ok || v == nil {
				return Errorf(KindValidation, "criterion value_extracted", "output carries no extracted value")
			}

		case command.CritScreenshotTaken:
			if stringField(output, "screenshot") == "" {
				return Errorf(KindValidation, "criterion screenshot_taken", "output carries no screenshot path")
			}

		case command.CritNoErrors:
			// Reaching validation means the attempt raised no error.

		case command.CritResponseReceived:
			if output == nil {
				return Errorf(KindValidation, "criterion response_received", "no output produced")
			}

		case command.CritCustom:
			fn, ok := e.criteria[crit.Name]
			if !ok {
				e.logger.Warn("unknown custom criterion, skipping", zap.String("criterion", crit.Name))
				continue
			}
			if !fn(output) {
				return Errorf(KindValidation, "criterion "+crit.Name, "custom criterion not met")
			}

		default:
			e.logger.Warn("unknown criterion kind, skipping", zap.String("kind", string(crit.Kind)))
		}
	}
	return nil
}

// FactCondition builds a precondition from fact patterns: it holds
// when every pattern matches a recorded fact.
func FactCondition(store *facts.Engine, patterns []facts.Fact) ConditionFunc {
	return func(ctx context.Context, d Driver, params map[string]interface{}) (bool, error) {
		return store.MatchesAll(patterns), nil
	}
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func stringField(output map[string]interface{}, key string) string {
	if v, ok := output[key].(string); ok {
		return v
	}
	return ""
}
