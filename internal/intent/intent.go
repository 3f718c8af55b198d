package intent

import (
	"math"
	"strings"
)

// Kind tags what the user wants to do. Produced by an external NLU layer
// or by the keyword classifier in this package.
type Kind string

const (
	KindNavigate   Kind = "navigate"
	KindClick      Kind = "click"
	KindType       Kind = "type"
	KindWait       Kind = "wait"
	KindExtract    Kind = "extract"
	KindScreenshot Kind = "screenshot"
	KindSearch     Kind = "search"
	KindGoBack     Kind = "go_back"
	KindRefresh    Kind = "refresh"
	KindUnknown    Kind = "unknown"
)

// Intent is the tagged classification of a user goal. Only the fields
// relevant to the Kind are populated.
type Intent struct {
	Kind Kind `json:"kind"`

	// Navigate
	URL    string `json:"url,omitempty"`
	NewTab bool   `json:"new_tab,omitempty"`

	// Click / Type / Wait
	Target     string `json:"target,omitempty"`
	Text       string `json:"text,omitempty"`
	ClearFirst bool   `json:"clear_first,omitempty"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`

	// Extract
	DataType DataType `json:"data_type,omitempty"`

	// Screenshot
	FullPage bool `json:"full_page,omitempty"`

	// Search
	Query string `json:"query,omitempty"`
}

// DataType names what an extraction intent is after.
type DataType string

const (
	DataText   DataType = "text"
	DataLinks  DataType = "links"
	DataImages DataType = "images"
	DataTables DataType = "tables"
)

// EntityType classifies a span extracted from the raw instruction.
type EntityType string

const (
	EntityEmail    EntityType = "email"
	EntityURL      EntityType = "url"
	EntityPhone    EntityType = "phone"
	EntityNumber   EntityType = "number"
	EntityCurrency EntityType = "currency"
	EntityLocation EntityType = "location"
	EntityTime     EntityType = "time"
	EntityFreeText EntityType = "free_text"
)

// Entity is a typed span extracted from the raw instruction.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
	Span  [2]int     `json:"span"`
}

// UserInstruction bundles the raw text with its classification.
type UserInstruction struct {
	RawText        string                 `json:"raw_text"`
	NormalizedText string                 `json:"normalized_text"`
	Intent         Intent                 `json:"intent"`
	Confidence     float64                `json:"confidence"`
	Entities       []Entity               `json:"entities,omitempty"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// Normalize lowercases and collapses whitespace for matching.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Complexity maps instruction length onto [0,1]. Ten words or more count
// as maximally complex.
func Complexity(text string) float64 {
	words := len(strings.Fields(text))
	return math.Min(float64(words)/10.0, 1.0)
}
