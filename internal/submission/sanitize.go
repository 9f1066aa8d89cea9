package submission

import "strings"

var markupStripper = strings.NewReplacer("<", "", ">", "")

// Sanitize removes angle brackets and trims surrounding whitespace.
// Anything that is not a string sanitizes to "".
func Sanitize(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(markupStripper.Replace(s))
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EscapeQuoted escapes backslashes and double quotes for text placed inside a
// double-quoted string that is not produced by the YAML encoder.
func EscapeQuoted(s string) string {
	return quoteEscaper.Replace(s)
}

// oneLine collapses every whitespace run, newlines included, into one space.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
