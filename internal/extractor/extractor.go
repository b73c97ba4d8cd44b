// Package extractor turns fetched HTML into plain-text knowledge content.
package extractor

import (
	"regexp"
	"strings"
)

// MaxContentLen bounds stored content and downstream prompt size.
const MaxContentLen = 50000

// Result is the extracted title/body pair.
type Result struct {
	Title   string
	Content string
}

// Tags whose contents are dropped wholesale: page chrome and code carry no
// knowledge text.
var strippedTags = []string{"script", "style", "nav", "footer", "header", "aside", "noscript"}

var (
	reTitle  = regexp.MustCompile(`(?is)<title[^>]*>([^<]+)</title>`)
	reTags   = regexp.MustCompile(`(?s)<[^>]+>`)
	reSpace  = regexp.MustCompile(`\s+`)
	reLines  = regexp.MustCompile(`\n+`)
	reBlocks = compileBlockPatterns()
)

func compileBlockPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(strippedTags))
	for _, tag := range strippedTags {
		out = append(out, regexp.MustCompile(`(?is)<`+tag+`[^>]*>.*?</`+tag+`>`))
	}
	return out
}

// entityReplacer decodes the six common HTML entities. Numeric character
// references and the long tail of named entities are intentionally left
// intact; this is a scope limitation, not a bug.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Extract converts raw HTML into a title and plain-text content. It is a
// pure transform; fetching and persistence belong to the caller.
func Extract(html string) Result {
	var title string
	if match := reTitle.FindStringSubmatch(html); len(match) > 1 {
		title = strings.TrimSpace(match[1])
	}

	text := html
	for _, re := range reBlocks {
		text = re.ReplaceAllString(text, "")
	}
	// Each remaining tag becomes a space so adjacent words do not join.
	text = reTags.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	text = reSpace.ReplaceAllString(text, " ")
	text = reLines.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)

	if len(text) > MaxContentLen {
		text = text[:MaxContentLen]
	}

	return Result{Title: title, Content: text}
}
