package ledger

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Hashtags extracts lowercased, deduplicated hashtags from post content in
// a single pass, without the leading '#'.
func Hashtags(content string) []string {
	matches := hashtagPattern.FindAllString(content, -1)
	return lo.Uniq(lo.Map(matches, func(tag string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(tag, "#"))
	}))
}
