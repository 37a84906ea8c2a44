package comments

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9._@])@([A-Za-z0-9._]{1,64})`)

// Mentions returns the distinct @handles in body in order of first use.
// Trailing dots are treated as punctuation.
func Mentions(body string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		handle := strings.TrimRight(m[1], ".")
		if handle == "" {
			continue
		}
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		out = append(out, handle)
	}
	return out
}
