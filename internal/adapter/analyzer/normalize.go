package analyzer

import (
	"regexp"
	"strings"
)

var horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

// Normalize collapses horizontal whitespace and joins wrapped lines. Runs of
// blank lines become a single blank line so paragraph chunking still works.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paras []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paras = append(paras, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paras, "\n\n")
}
