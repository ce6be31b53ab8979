// Package sanitize cleans user supplied text before it is stored, rendered or
// relayed to chat clients.
package sanitize

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	// Structural and emphasis tags only; no attributes survive.
	markdownPolicy = bluemonday.NewPolicy().AllowElements(
		"p", "br", "ul", "ol", "li", "strong", "bold", "i", "em",
		"h1", "h2", "h3", "h4", "h5", "h6",
	)

	markdown = goldmark.New()
)

// Strict removes every tag and attribute and returns plain text. Applying it
// to its own output is a no-op.
func Strict(s string) string {
	return strictPolicy.Sanitize(s)
}

// Markdown renders s as markdown and filters the resulting HTML through the
// formatting allow-list. Raw HTML inside s is never passed through.
func Markdown(s string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		// Rendering failed; fall back to the escaped source text.
		return Strict(s)
	}
	return markdownPolicy.SanitizeReader(&buf).String()
}
