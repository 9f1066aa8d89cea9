package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "script tags", in: "Test <script>alert(1)</script> Event", want: "Test scriptalert(1)/script Event"},
		{name: "trims", in: "  Camp Out \n", want: "Camp Out"},
		{name: "only brackets", in: "<<>>", want: ""},
		{name: "keeps quotes for the encoder", in: `Event with "quotes"`, want: `Event with "quotes"`},
		{name: "keeps inner newlines", in: "line one\nline two", want: "line one\nline two"},
		{name: "number", in: 42, want: ""},
		{name: "nil", in: nil, want: ""},
		{name: "list", in: []any{"a"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"Test <script>alert(1)</script> Event",
		"  <b>Bold</b> move  ",
		`Back\slash "and" quotes`,
		"",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.NotContains(t, once, "<")
		assert.NotContains(t, once, ">")
	}
}

func TestEscapeQuoted(t *testing.T) {
	assert.Equal(t, `say \"hi\" \\o/`, EscapeQuoted(`say "hi" \o/`))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "Jane Doe Troop 5", oneLine("Jane\nDoe \t Troop 5 "))
}
