package markdown

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Policy returns a bluemonday policy admitting exactly the markup Render
// emits. The API and CLI apply it as a second gate in strict mode. Output is
// unchanged except for links rejected by SanitizeURL: bluemonday drops an
// href of "#", which leaves an inert anchor.
// The returned policy is shared and must not be modified.
func Policy() *bluemonday.Policy {
	return strictPolicy()
}

// RenderStrict renders text and sanitizes the result with Policy.
func RenderStrict(text string) string {
	return Policy().Sanitize(Render(text))
}

var strictPolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3",
		"p", "br", "hr",
		"strong", "em",
		"ul", "li", "blockquote",
		"pre", "code", "div", "a",
	)

	p.AllowAttrs("class").
		Matching(regexp.MustCompile(`^(?:inline-code|code-block|code-lang)$`)).
		OnElements("code", "div")

	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^noopener$`)).OnElements("a")

	return p
})
