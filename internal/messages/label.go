package messages

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	emptyLabel       = "Empty Message"
	emptyStringLabel = "(empty string)"
	nilLabel         = "<nil>"
	labelSeparator   = " + "
	moreSuffix       = "(...)"
	maxLineRunes     = 20
)

// Label describes payloads in one line. The result is meant for humans
// reading logs and must not be parsed.
func Label(payloads []any) string {
	if len(payloads) == 0 {
		return emptyLabel
	}

	parts := make([]string, 0, len(payloads))
	for _, p := range payloads {
		parts = append(parts, describe(p))
	}
	return strings.Join(parts, labelSeparator)
}

func describe(p any) string {
	s, ok := p.(string)
	if !ok {
		return typeName(p)
	}
	if isBlank(s) {
		return emptyStringLabel
	}

	lines := newLineReader(s)

	var line string
	for {
		next, more := lines.next()
		if !more {
			return emptyStringLabel
		}
		if !isBlank(next) {
			line = next
			break
		}
	}

	line = sanitize(line)
	if utf8.RuneCountInString(line) > maxLineRunes {
		return string([]rune(line)[:maxLineRunes]) + moreSuffix
	}

	if next, _ := lines.next(); isBlank(next) {
		return line
	}
	return line + moreSuffix
}

// typeName returns the import-path qualified name of p's type, or the type
// literal for unnamed types.
func typeName(p any) string {
	t := reflect.TypeOf(p)
	if t == nil {
		return nilLabel
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var dropPunctuation = runes.Remove(runes.Predicate(func(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}))

// sanitize keeps letters, digits and whitespace, then trims the ends.
func sanitize(line string) string {
	out, _, _ := transform.String(dropPunctuation, line)
	return strings.TrimSpace(out)
}

// lineReader yields the lines of a string one at a time. "\n", "\r\n" and
// a lone "\r" all end a line; the terminator is not part of the line.
type lineReader struct {
	rest string
	done bool
}

func newLineReader(s string) *lineReader {
	return &lineReader{rest: s}
}

func (r *lineReader) next() (string, bool) {
	if r.done || r.rest == "" {
		r.done = true
		return "", false
	}

	i := strings.IndexAny(r.rest, "\r\n")
	if i < 0 {
		line := r.rest
		r.rest = ""
		r.done = true
		return line, true
	}

	line := r.rest[:i]
	skip := 1
	if r.rest[i] == '\r' && i+1 < len(r.rest) && r.rest[i+1] == '\n' {
		skip = 2
	}
	r.rest = r.rest[i+skip:]
	return line, true
}
