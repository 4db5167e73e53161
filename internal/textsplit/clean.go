package textsplit

import (
	"regexp"
	"strings"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)
	codeFenceRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe   = regexp.MustCompile("`([^`]*)`")
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe     = regexp.MustCompile(`(\*\*\*|\*\*|\*|___|__|_)`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	wikiLinkRe     = regexp.MustCompile(`\[\[([^\]|]*)(\|[^\]]*)?\]\]`)
)

// DefaultClean is the markup-stripping collaborator (section 4.1): it
// removes frontmatter, code fences, inline code ticks, markdown/wiki link
// syntax, emphasis markers, and heading hashes, leaving plain prose text
// suitable for synthesis and for use as a cache key. The editor host may
// supply a more thorough implementation (chunk.CleanFunc is pluggable); this
// is the default used when none is configured.
func DefaultClean(raw string) string {
	s := frontmatterRe.ReplaceAllString(raw, "")
	s = codeFenceRe.ReplaceAllString(s, "")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = wikiLinkRe.ReplaceAllString(s, "$1")
	s = markdownLinkRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	return strings.TrimRight(s, "")
}
