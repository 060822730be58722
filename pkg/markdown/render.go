// Package markdown renders the small Markdown subset used in assistant
// responses into HTML that is safe to insert into the dashboard.
//
// The renderer is deliberately closed: every tag and attribute in its output
// is fixed matter written by this package, and every substring that came from
// the input is HTML-escaped first. The full list of emitted markup is:
//
//	h1 h2 h3 strong em code pre div(code-block, code-lang)
//	a(target=_blank, rel=noopener) ul li blockquote hr br p
//
// Rendering happens in three phases:
//
//  1. Code extraction: fenced blocks and inline code spans become opaque
//     nodes, escaped and rendered immediately.
//  2. Blocks: a line state machine for headings, rules, lists, blockquotes
//     and paragraphs.
//  3. Inline: links are lifted out before escaping, the rest of the text is
//     escaped, then bold and italic are applied to the escaped text and the
//     links are restored with sanitized URLs.
package markdown

import "strings"

// Render converts markdown text to HTML. It is pure and deterministic: equal
// inputs always produce byte-identical output, and it never panics.
func Render(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var w blockWriter
	for _, l := range splitLines(extractOpaque(text)) {
		w.writeLine(l)
	}

	return w.String()
}
