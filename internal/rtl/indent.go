package rtl

import (
	"regexp"
	"strings"
)

// IndentOptions controls the whitespace of rendered output
type IndentOptions struct {
	TabWidth int
	RealTabs bool
}

var (
	openRe = []*regexp.Regexp{
		regexp.MustCompile(`\bbegin\b`),
		regexp.MustCompile(`^(unique |priority )?case\b`),
		regexp.MustCompile(`^package\b`),
		regexp.MustCompile(`[({]$`),
	}
	closeRe = []*regexp.Regexp{
		regexp.MustCompile(`\bend\b`),
		regexp.MustCompile(`\bendcase\b`),
		regexp.MustCompile(`\bendpackage\b`),
		regexp.MustCompile(`^[)}]`),
	}
)

// Indent re-indents rendered lines. A line that starts with a closer is
// printed one level out; the level then follows the balance of openers
// and closers on the line. Comments are ignored when counting.
func Indent(lines []string, opts IndentOptions) []string {
	unit := strings.Repeat(" ", max(opts.TabWidth, 0))
	if opts.RealTabs {
		unit = "\t"
	}

	out := make([]string, 0, len(lines))
	level := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			out = append(out, "")
			continue
		}
		code := stripComment(line)
		opens, closes := count(code, openRe), count(code, closeRe)

		if startsWithCloser(code) {
			level = max(level-1, 0)
			closes--
		}
		out = append(out, strings.Repeat(unit, level)+line)
		level = max(level+opens-closes, 0)
	}
	return out
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

func count(code string, res []*regexp.Regexp) int {
	n := 0
	for _, re := range res {
		n += len(re.FindAllStringIndex(code, -1))
	}
	return n
}

func startsWithCloser(code string) bool {
	for _, re := range closeRe {
		loc := re.FindStringIndex(code)
		if loc != nil && loc[0] == 0 {
			return true
		}
	}
	return false
}
