package markdown

import (
	"html"
	"strings"
)

// fence is the fenced code block delimiter.
const fence = "```"

type nodeKind int

const (
	nodeText  nodeKind = iota // raw, unescaped input text
	nodeCode                  // inline code span, pre-rendered
	nodeBlock                 // fenced code block, pre-rendered
	nodeLink                  // [text](url), escaped and sanitized on output
)

// node is one piece of a partially parsed document. Code and links are held
// as typed nodes rather than marker strings spliced into the text, so no input
// can ever be mistaken for an extracted span.
type node struct {
	kind nodeKind

	// text is the raw text of a text node, or the display text of a link.
	text string

	// url is the unsanitized link target.
	url string

	// html is the final markup of a code span or code block.
	html string
}

// extractOpaque splits src into text nodes and pre-rendered code nodes.
// Fenced blocks are found first so that backticks inside them never start an
// inline span.
func extractOpaque(src string) []node {
	var nodes []node
	for src != "" {
		start := strings.Index(src, fence)
		if start < 0 {
			nodes = appendInlineCode(nodes, src)
			break
		}

		nodes = appendInlineCode(nodes, src[:start])

		var block node
		block, src = scanFence(src[start+len(fence):])
		nodes = append(nodes, block)
	}

	return nodes
}

// scanFence consumes a fenced block body (after the opening delimiter) and
// returns the rendered block plus the remaining source. An unterminated fence
// runs to the end of the input, which keeps a half-streamed code block opaque.
func scanFence(s string) (node, string) {
	langEnd := 0
	for langEnd < len(s) && isLangByte(s[langEnd]) {
		langEnd++
	}
	lang, body := s[:langEnd], s[langEnd:]

	// The info line holds only a language tag. Anything else after the tag
	// makes it part of the code, as in "```x```".
	line, next, hasNL := strings.Cut(body, "\n")
	switch {
	case strings.TrimSpace(line) != "":
		lang, body = "", s
	case hasNL:
		body = next
	}

	var code, rest string
	if end := strings.Index(body, fence); end >= 0 {
		code, rest = body[:end], body[end+len(fence):]
	} else {
		code = body
	}
	code = strings.TrimSuffix(code, "\n")

	var b strings.Builder
	b.WriteString(`<div class="code-block">`)
	if lang != "" {
		b.WriteString(`<div class="code-lang">`)
		b.WriteString(html.EscapeString(lang))
		b.WriteString(`</div>`)
	}
	b.WriteString(`<pre><code>`)
	b.WriteString(html.EscapeString(code))
	b.WriteString(`</code></pre></div>`)

	return node{kind: nodeBlock, html: b.String()}, rest
}

func isLangByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '+', c == '#', c == '.':
		return true
	}
	return false
}

// appendInlineCode splits s on single-backtick spans. A span never crosses a
// newline and is never empty; a backtick that cannot open one stays literal.
func appendInlineCode(nodes []node, s string) []node {
	var text strings.Builder
	for {
		open := strings.IndexByte(s, '`')
		if open < 0 {
			break
		}

		tail := s[open+1:]
		end := strings.IndexAny(tail, "`\n")
		if end <= 0 || tail[end] != '`' {
			text.WriteString(s[:open+1])
			s = tail
			continue
		}

		text.WriteString(s[:open])
		nodes = appendText(nodes, text.String())
		text.Reset()

		nodes = append(nodes, node{
			kind: nodeCode,
			html: `<code class="inline-code">` + html.EscapeString(tail[:end]) + `</code>`,
		})
		s = tail[end+1:]
	}

	text.WriteString(s)
	return appendText(nodes, text.String())
}

func appendText(nodes []node, s string) []node {
	if s == "" {
		return nodes
	}
	return append(nodes, node{kind: nodeText, text: s})
}
