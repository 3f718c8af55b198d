package browser

import "strings"

// EscapeCSSIdentifier escapes characters that carry CSS selector syntax so a
// raw value (element ID, generated token) can be embedded in a selector
// without being parsed as combinators or pseudo-classes.
func EscapeCSSIdentifier(s string) string {
	var result []rune
	for _, r := range s {
		switch r {
		case '/', '.', ':', '[', ']', '(', ')', '#', '>', '+', '~', '=', '^', '$', '*', '|', '!', '@', '%', '&', '\'', '"', '`', '{', '}', ' ':
			result = append(result, '\\', r)
		default:
			result = append(result, r)
		}
	}
	return string(result)
}

// EscapeAttributeValue escapes a value for use inside a double-quoted CSS
// attribute selector, e.g. [name="..."].
func EscapeAttributeValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// EscapeJSString escapes a value for embedding inside a single-quoted
// JavaScript string literal, as used by querySelector snippets.
func EscapeJSString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}
