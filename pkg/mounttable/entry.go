package mounttable

import (
	"fmt"
	"strings"
)

// Entry is one parsed mount table line.
type Entry struct {
	Source     string
	Mountpoint string
	Filesystem string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s,%s,%s", e.Source, e.Mountpoint, e.Filesystem)
}

// SkipReason explains why a line produced no entry. The empty reason means
// the line parsed.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipBlankOrComment SkipReason = "blank_or_comment"
	SkipIncomplete     SkipReason = "parse_incomplete"
)

// Parse extracts the first three whitespace separated fields of line.
// Trailing fields are ignored. Parse keeps no state between calls.
func Parse(line string) (Entry, SkipReason) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) <= 1 || line[0] == '#' {
		return Entry{}, SkipBlankOrComment
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, SkipIncomplete
	}

	return Entry{
		Source:     unescape(fields[0]),
		Mountpoint: unescape(fields[1]),
		Filesystem: fields[2],
	}, SkipNone
}

// unescape decodes the \ooo octal escapes the kernel uses for space, tab,
// newline and backslash in mount table paths. Malformed escapes are kept as is.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] <= '3' && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
