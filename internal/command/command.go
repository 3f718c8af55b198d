package command

// Category groups commands for intent affinity scoring.
type Category string

const (
	CategoryNavigation     Category = "navigation"
	CategoryInteraction    Category = "interaction"
	CategoryExtraction     Category = "extraction"
	CategoryValidation     Category = "validation"
	CategoryPageManagement Category = "page_management"
)

// ParamType describes the value a parameter accepts.
type ParamType string

const (
	ParamString      ParamType = "string"
	ParamInteger     ParamType = "integer"
	ParamFloat       ParamType = "float"
	ParamBoolean     ParamType = "boolean"
	ParamURL         ParamType = "url"
	ParamSelector    ParamType = "selector"
	ParamCoordinate  ParamType = "coordinate"
	ParamDuration    ParamType = "duration"
	ParamKeySequence ParamType = "key_sequence"
	ParamJSON        ParamType = "json"
)

// ValidationKind constrains a parameter value.
type ValidationKind string

const (
	ValidateMinLen  ValidationKind = "min_len"
	ValidateMaxLen  ValidationKind = "max_len"
	ValidatePattern ValidationKind = "pattern"
	ValidateRange   ValidationKind = "range"
	ValidateOneOf   ValidationKind = "one_of"
)

// Validation is one constraint attached to a ParameterSpec.
type Validation struct {
	Kind    ValidationKind `json:"kind"`
	Min     float64        `json:"min,omitempty"`
	Max     float64        `json:"max,omitempty"`
	Pattern string         `json:"pattern,omitempty"`
	OneOf   []string       `json:"one_of,omitempty"`
}

// ParameterSpec declares one typed parameter of a command.
type ParameterSpec struct {
	Name        string       `json:"name"`
	Type        ParamType    `json:"type"`
	Required    bool         `json:"required"`
	Default     interface{}  `json:"default,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
	// Inferable marks parameters the registry may fill from intent entities.
	Inferable bool `json:"inferable"`
}

// PreconditionKind names a check run before a command executes.
type PreconditionKind string

const (
	PrePageLoaded         PreconditionKind = "page_loaded"
	PreElementExists      PreconditionKind = "element_exists"
	PreElementVisible     PreconditionKind = "element_visible"
	PreElementClickable   PreconditionKind = "element_clickable"
	PreURLMatches         PreconditionKind = "url_matches"
	PreNoActiveAnimations PreconditionKind = "no_active_animations"
	PreNetworkIdle        PreconditionKind = "network_idle"
	PreCustomCondition    PreconditionKind = "custom_condition"
)

// Precondition is one gate checked before the primary attempt. Element
// checks resolve their selector from the execution parameters.
type Precondition struct {
	Kind    PreconditionKind `json:"kind"`
	Pattern string           `json:"pattern,omitempty"` // url_matches substring
	Name    string           `json:"name,omitempty"`    // custom_condition lookup key
}

// CriterionKind names a postcondition checked after a successful attempt.
type CriterionKind string

const (
	CritPageNavigated    CriterionKind = "page_navigated"
	CritElementClicked   CriterionKind = "element_clicked"
	CritTextEntered      CriterionKind = "text_entered"
	CritElementFound     CriterionKind = "element_found"
	CritValueExtracted   CriterionKind = "value_extracted"
	CritScreenshotTaken  CriterionKind = "screenshot_taken"
	CritNoErrors         CriterionKind = "no_errors"
	CritResponseReceived CriterionKind = "response_received"
	CritCustom           CriterionKind = "custom"
)

// SuccessCriterion is one postcondition.
type SuccessCriterion struct {
	Kind CriterionKind `json:"kind"`
	Name string        `json:"name,omitempty"` // custom lookup key
}

// FallbackKind names a recovery procedure.
type FallbackKind string

const (
	FallbackWaitAndRetry           FallbackKind = "wait_and_retry"
	FallbackScrollToElement        FallbackKind = "scroll_to_element"
	FallbackUseAlternativeSelector FallbackKind = "use_alternative_selector"
	FallbackClickParentElement     FallbackKind = "click_parent_element"
	FallbackUseJavaScript          FallbackKind = "use_javascript"
	FallbackVisualDetection        FallbackKind = "visual_element_detection"
	FallbackForceClick             FallbackKind = "force_click"
	FallbackClearAndType           FallbackKind = "clear_and_type"
	FallbackRefreshAndRetry        FallbackKind = "refresh_and_retry"
	FallbackCreativeAlternative    FallbackKind = "creative_alternative"
)

// Fallback is one entry in a command's recovery ladder. The ladder is
// tried strictly in declaration order.
type Fallback struct {
	Kind     FallbackKind `json:"kind"`
	Attempts int          `json:"attempts,omitempty"` // wait_and_retry
	Selector string       `json:"selector,omitempty"` // use_alternative_selector
}

// Command is an immutable catalog entry. Instances are built once at
// registration and never mutated afterwards.
type Command struct {
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	Category            Category           `json:"category"`
	Parameters          []ParameterSpec    `json:"parameters"`
	Preconditions       []Precondition     `json:"preconditions"`
	SuccessCriteria     []SuccessCriterion `json:"success_criteria"`
	Fallbacks           []Fallback         `json:"fallbacks"`
	SemanticTags        []string           `json:"semantic_tags"`
	Complexity          float64            `json:"complexity"` // [0,1]
	TypicalDurationMs   int64              `json:"typical_duration_ms"`
	ModifiesState       bool               `json:"modifies_state"`
	RequiresInteraction bool               `json:"requires_interaction"`
}

// Param returns the spec for a named parameter.
func (c *Command) Param(name string) (ParameterSpec, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Builder assembles a Command fluently. Definitions read as a single
// chained expression at registration time.
type Builder struct {
	cmd Command
}

// NewCommand starts a builder for the given name and category.
func NewCommand(name string, category Category) *Builder {
	return &Builder{cmd: Command{Name: name, Category: category}}
}

func (b *Builder) Description(d string) *Builder {
	b.cmd.Description = d
	return b
}

func (b *Builder) Parameter(spec ParameterSpec) *Builder {
	b.cmd.Parameters = append(b.cmd.Parameters, spec)
	return b
}

func (b *Builder) Precondition(p Precondition) *Builder {
	b.cmd.Preconditions = append(b.cmd.Preconditions, p)
	return b
}

func (b *Builder) SuccessCriterion(c SuccessCriterion) *Builder {
	b.cmd.SuccessCriteria = append(b.cmd.SuccessCriteria, c)
	return b
}

func (b *Builder) Fallback(f Fallback) *Builder {
	b.cmd.Fallbacks = append(b.cmd.Fallbacks, f)
	return b
}

func (b *Builder) Tags(tags ...string) *Builder {
	b.cmd.SemanticTags = append(b.cmd.SemanticTags, tags...)
	return b
}

func (b *Builder) Complexity(c float64) *Builder {
	b.cmd.Complexity = c
	return b
}

func (b *Builder) TypicalDuration(ms int64) *Builder {
	b.cmd.TypicalDurationMs = ms
	return b
}

func (b *Builder) ModifiesState() *Builder {
	b.cmd.ModifiesState = true
	return b
}

func (b *Builder) RequiresInteraction() *Builder {
	b.cmd.RequiresInteraction = true
	return b
}

// Build returns the assembled command.
func (b *Builder) Build() Command {
	return b.cmd
}
