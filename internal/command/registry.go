package command

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"webpilot/internal/intent"
)

// Alternative is a runner-up candidate from selection.
type Alternative struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Selection is the outcome of matching an instruction to the catalog.
type Selection struct {
	Command      *Command               `json:"command"`
	Parameters   map[string]interface{} `json:"parameters"`
	Score        float64                `json:"score"`
	Reasoning    string                 `json:"reasoning"`
	Alternatives []Alternative          `json:"alternatives,omitempty"`
}

// Registry is an append-only command catalog. Commands are registered
// at startup and never removed, so lookups after that point need no
// locking discipline beyond the internal mutex.
type Registry struct {
	logger *zap.Logger
	stats  *StatsTracker

	mu     sync.RWMutex
	byName map[string]*Command
	order  []string
}

// NewRegistry creates a registry preloaded with the builtin catalog.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger: logger.With(zap.String("component", "registry")),
		stats:  NewStatsTracker(),
		byName: make(map[string]*Command),
	}
	for _, c := range Builtins() {
		if err := r.Register(c); err != nil {
			r.logger.Warn("builtin registration failed", zap.String("command", c.Name), zap.Error(err))
		}
	}
	return r
}

// Register adds a command. Re-registering a name is an error; the
// catalog is append-only.
func (r *Registry) Register(c Command) error {
	if c.Name == "" {
		return fmt.Errorf("register command: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[c.Name]; exists {
		return fmt.Errorf("register command: %q already registered", c.Name)
	}
	cc := c
	r.byName[c.Name] = &cc
	r.order = append(r.order, c.Name)
	return nil
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// All returns the catalog in registration order.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Stats exposes the execution tracker so the engine can record outcomes.
func (r *Registry) Stats() *StatsTracker {
	return r.stats
}

// intentTable maps instruction kinds directly to commands. Extract is
// resolved separately by data type.
var intentTable = map[intent.Kind]string{
	intent.KindNavigate:   "navigate_to_url",
	intent.KindClick:      "click_element",
	intent.KindType:       "input_text",
	intent.KindWait:       "wait_for_element",
	intent.KindScreenshot: "take_screenshot",
	intent.KindGoBack:     "go_back",
	intent.KindRefresh:    "refresh_page",
}

var extractTable = map[intent.DataType]string{
	intent.DataText:   "extract_text",
	intent.DataLinks:  "extract_links",
	intent.DataImages: "extract_images",
	intent.DataTables: "extract_tables",
}

// ForIntent resolves an instruction to a command. Kinds with a direct
// mapping bypass scoring; anything else falls back to Select.
func (r *Registry) ForIntent(instr intent.UserInstruction) (*Selection, error) {
	name, ok := intentTable[instr.Intent.Kind]
	if !ok && instr.Intent.Kind == intent.KindExtract {
		name, ok = extractTable[instr.Intent.DataType]
		if !ok {
			name, ok = "extract_text", true
		}
	}
	if ok {
		cmd, found := r.Get(name)
		if !found {
			return nil, fmt.Errorf("command %q not registered", name)
		}
		return &Selection{
			Command:    cmd,
			Parameters: r.InferParameters(cmd, instr),
			Score:      instr.Confidence,
			Reasoning:  fmt.Sprintf("direct mapping for %s intent", instr.Intent.Kind),
		}, nil
	}
	return r.Select(instr)
}

// Select scores every registered command against the instruction and
// returns the best match with up to three alternatives. Scoring is a
// pure function of the instruction and recorded stats, so repeated
// calls with the same input yield the same ranking.
func (r *Registry) Select(instr intent.UserInstruction) (*Selection, error) {
	r.mu.RLock()
	catalog := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		catalog = append(catalog, r.byName[name])
	}
	r.mu.RUnlock()

	if len(catalog) == 0 {
		return nil, fmt.Errorf("select command: registry is empty")
	}

	type scored struct {
		cmd     *Command
		score   float64
		reasons []string
	}
	candidates := make([]scored, 0, len(catalog))
	for _, cmd := range catalog {
		score, reasons := r.score(cmd, instr)
		candidates = append(candidates, scored{cmd: cmd, score: score, reasons: reasons})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].cmd.Name < candidates[j].cmd.Name
	})

	best := candidates[0]
	sel := &Selection{
		Command:    best.cmd,
		Parameters: r.InferParameters(best.cmd, instr),
		Score:      best.score,
		Reasoning:  strings.Join(best.reasons, "; "),
	}
	for _, c := range candidates[1:] {
		if len(sel.Alternatives) == 3 {
			break
		}
		if c.score <= 0 {
			break
		}
		sel.Alternatives = append(sel.Alternatives, Alternative{Name: c.cmd.Name, Score: c.score})
	}
	return sel, nil
}

// score computes the match score for one command in [0,1], scaled by
// the instruction confidence.
func (r *Registry) score(cmd *Command, instr intent.UserInstruction) (float64, []string) {
	text := instr.NormalizedText
	var score float64
	var reasons []string

	if aff := categoryAffinity(cmd.Category, instr.Intent.Kind); aff > 0 {
		score += aff
		reasons = append(reasons, fmt.Sprintf("category affinity %.2f", aff))
	}

	tagHits := 0
	for _, tag := range cmd.SemanticTags {
		if strings.Contains(text, tag) {
			tagHits++
		}
	}
	if tagHits > 0 {
		score += 0.15 * float64(tagHits)
		reasons = append(reasons, fmt.Sprintf("%d tag match(es)", tagHits))
	}

	if overlap := descriptionOverlap(cmd.Description, text); overlap > 0 {
		score += overlap * 0.20
		reasons = append(reasons, fmt.Sprintf("description overlap %.2f", overlap))
	}

	spokenName := strings.ReplaceAll(cmd.Name, "_", " ")
	if strings.Contains(text, spokenName) {
		score += 0.25
		reasons = append(reasons, "name mentioned")
	}

	align := 1.0 - math.Abs(cmd.Complexity-intent.Complexity(text))
	score += align * 0.10

	if r.stats.Executions(cmd.Name) > 5 {
		rate := r.stats.SuccessRate(cmd.Name)
		score += rate * 0.10
		reasons = append(reasons, fmt.Sprintf("success rate %.2f", rate))
	}

	score = math.Max(0, math.Min(1, score))
	return score * instr.Confidence, reasons
}

func categoryAffinity(cat Category, kind intent.Kind) float64 {
	switch cat {
	case CategoryNavigation:
		if kind == intent.KindNavigate {
			return 0.30
		}
	case CategoryInteraction:
		if kind == intent.KindClick || kind == intent.KindType {
			return 0.25
		}
	case CategoryExtraction:
		if kind == intent.KindExtract {
			return 0.30
		}
	}
	return 0
}

// descriptionOverlap is the fraction of description words that appear
// in the instruction text. Short connective words are skipped.
func descriptionOverlap(description, text string) float64 {
	words := strings.Fields(strings.ToLower(description))
	textWords := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		textWords[w] = true
	}
	total, hits := 0, 0
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		total++
		if textWords[w] {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

var quotedParamRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// InferParameters fills a parameter map from the instruction. Intent
// fields are preferred, then typed entities, then declared defaults,
// then quoted fragments of the raw text. The result depends only on
// the instruction, so repeated inference is stable.
func (r *Registry) InferParameters(cmd *Command, instr intent.UserInstruction) map[string]interface{} {
	params := make(map[string]interface{})
	for _, spec := range cmd.Parameters {
		if v, ok := inferFromIntent(spec.Name, instr.Intent); ok {
			params[spec.Name] = v
			continue
		}
		if !spec.Inferable {
			if spec.Default != nil {
				params[spec.Name] = spec.Default
			}
			continue
		}
		if v, ok := inferFromEntities(spec.Type, instr.Entities); ok {
			params[spec.Name] = v
			continue
		}
		if spec.Default != nil {
			params[spec.Name] = spec.Default
			continue
		}
		if spec.Type == ParamString || spec.Type == ParamSelector {
			if m := quotedParamRe.FindStringSubmatch(instr.RawText); m != nil {
				if m[1] != "" {
					params[spec.Name] = m[1]
				} else {
					params[spec.Name] = m[2]
				}
			}
		}
	}
	return params
}

func inferFromIntent(name string, in intent.Intent) (interface{}, bool) {
	switch name {
	case "url":
		if in.URL != "" {
			return in.URL, true
		}
	case "selector":
		if in.Target != "" {
			return in.Target, true
		}
	case "text":
		if in.Text != "" {
			return in.Text, true
		}
	case "clear_first":
		if in.ClearFirst {
			return true, true
		}
	case "full_page":
		if in.FullPage {
			return true, true
		}
	case "timeout_ms":
		if in.TimeoutMs > 0 {
			return in.TimeoutMs, true
		}
	case "new_tab":
		if in.NewTab {
			return true, true
		}
	}
	return nil, false
}

// inferFromEntities maps parameter types to the entity kinds that can
// satisfy them.
func inferFromEntities(t ParamType, entities []intent.Entity) (interface{}, bool) {
	for _, e := range entities {
		switch t {
		case ParamURL:
			if e.Type == intent.EntityURL {
				return e.Value, true
			}
		case ParamString, ParamSelector:
			if e.Type == intent.EntityFreeText || e.Type == intent.EntityLocation {
				return e.Value, true
			}
		case ParamInteger, ParamFloat:
			if e.Type == intent.EntityNumber {
				return e.Value, true
			}
		case ParamDuration:
			if e.Type == intent.EntityTime {
				return e.Value, true
			}
		}
	}
	return nil, false
}
