package intent

import (
	"regexp"
	"strings"
)

var (
	urlRe    = regexp.MustCompile(`(?i)\b(?:https?://[^\s"']+|(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s"']*)?)`)
	emailRe  = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	numberRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// Classify turns free-form text into a UserInstruction using keyword
// matching. This is the fallback path; callers with a real NLU layer
// construct UserInstruction values directly.
func Classify(raw string) UserInstruction {
	normalized := Normalize(raw)
	entities := ExtractEntities(raw)

	instr := UserInstruction{
		RawText:        raw,
		NormalizedText: normalized,
		Entities:       entities,
		Confidence:     0.5,
		Intent:         Intent{Kind: KindUnknown},
	}

	quoted := firstQuoted(raw)

	switch {
	case containsAny(normalized, "search for", "look up", "look for", "find results"):
		instr.Intent = Intent{Kind: KindSearch, Query: searchQuery(raw, quoted)}
		instr.Confidence = 0.8

	case containsAny(normalized, "go to", "navigate", "open ", "visit ", "browse to"):
		url := firstEntity(entities, EntityURL)
		instr.Intent = Intent{Kind: KindNavigate, URL: url}
		if url != "" {
			instr.Confidence = 0.9
		} else {
			instr.Confidence = 0.6
		}

	case containsAny(normalized, "screenshot", "capture the page", "capture page", "snap "):
		instr.Intent = Intent{
			Kind:     KindScreenshot,
			FullPage: strings.Contains(normalized, "full"),
		}
		instr.Confidence = 0.85

	case containsAny(normalized, "go back", "previous page", "back to"):
		instr.Intent = Intent{Kind: KindGoBack}
		instr.Confidence = 0.85

	case containsAny(normalized, "refresh", "reload"):
		instr.Intent = Intent{Kind: KindRefresh}
		instr.Confidence = 0.85

	case containsAny(normalized, "type ", "enter ", "input ", "fill "):
		instr.Intent = Intent{
			Kind:       KindType,
			Text:       quoted,
			Target:     afterKeyword(normalized, "into", "in "),
			ClearFirst: true,
		}
		instr.Confidence = 0.75

	case containsAny(normalized, "click", "press the", "tap "):
		target := quoted
		if target == "" {
			target = afterKeyword(normalized, "click on", "click the", "click", "tap ")
		}
		instr.Intent = Intent{Kind: KindClick, Target: target}
		instr.Confidence = 0.75

	case containsAny(normalized, "wait for", "wait until"):
		instr.Intent = Intent{Kind: KindWait, Target: quoted}
		instr.Confidence = 0.7

	case containsAny(normalized, "extract", "scrape", "get the", "read the", "list the"):
		dataType := DataText
		switch {
		case containsAny(normalized, "link"):
			dataType = DataLinks
		case containsAny(normalized, "image", "picture", "photo"):
			dataType = DataImages
		case containsAny(normalized, "table"):
			dataType = DataTables
		}
		instr.Intent = Intent{Kind: KindExtract, DataType: dataType}
		instr.Confidence = 0.75
	}

	return instr
}

// ExtractEntities pulls typed spans out of raw text. Order matters:
// emails would otherwise match the URL pattern's host part.
func ExtractEntities(raw string) []Entity {
	var entities []Entity
	taken := make([][2]int, 0, 4)

	add := func(t EntityType, loc []int, value string) {
		for _, seen := range taken {
			if loc[0] < seen[1] && loc[1] > seen[0] {
				return
			}
		}
		taken = append(taken, [2]int{loc[0], loc[1]})
		entities = append(entities, Entity{Type: t, Value: value, Span: [2]int{loc[0], loc[1]}})
	}

	for _, loc := range emailRe.FindAllStringIndex(raw, -1) {
		add(EntityEmail, loc, raw[loc[0]:loc[1]])
	}
	for _, loc := range urlRe.FindAllStringIndex(raw, -1) {
		add(EntityURL, loc, raw[loc[0]:loc[1]])
	}
	for _, loc := range numberRe.FindAllStringIndex(raw, -1) {
		add(EntityNumber, loc, raw[loc[0]:loc[1]])
	}
	for _, m := range quotedRe.FindAllStringSubmatchIndex(raw, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		add(EntityFreeText, []int{m[0], m[1]}, raw[start:end])
	}

	return entities
}

func firstEntity(entities []Entity, t EntityType) string {
	for _, e := range entities {
		if e.Type == t {
			return e.Value
		}
	}
	return ""
}

func firstQuoted(raw string) string {
	m := quotedRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func searchQuery(raw, quoted string) string {
	if quoted != "" {
		return quoted
	}
	normalized := Normalize(raw)
	for _, kw := range []string{"search for ", "look up ", "look for "} {
		if idx := strings.Index(normalized, kw); idx >= 0 {
			return strings.TrimSpace(normalized[idx+len(kw):])
		}
	}
	return ""
}

func afterKeyword(normalized string, keywords ...string) string {
	for _, kw := range keywords {
		if idx := strings.Index(normalized, kw); idx >= 0 {
			rest := strings.TrimSpace(normalized[idx+len(kw):])
			if rest != "" {
				return rest
			}
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
