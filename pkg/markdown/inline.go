package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	// linkPattern matches [text](url). The URL may hold one level of balanced
	// parentheses so that "javascript:alert(1)" is captured whole.
	linkPattern = regexp.MustCompile(`\[([^\]\n]+)\]\(((?:[^()\s]|\([^()\s]*\))+)\)`)

	boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

	// italicPattern may wrap slots but never a tag, so emphasis cannot
	// interleave with an enclosing <strong>.
	italicPattern = regexp.MustCompile(`\*((?:[^*<]|<\x00[0-9]+>)+)\*`)

	slotPattern = regexp.MustCompile(`<\x00([0-9]+)>`)
)

// renderInline renders one line of nodes destined for a heading, list item,
// blockquote or paragraph.
//
// Emphasis is applied to the escaped text with every non-text node standing
// in as a slot "<\x00N>". Escaped text can never contain '<', so a slot is
// unambiguous no matter what the input held.
func renderInline(nodes []node) string {
	nodes = extractLinks(nodes)

	var (
		b     strings.Builder
		slots []string
	)
	for _, n := range nodes {
		if n.kind == nodeText {
			b.WriteString(html.EscapeString(n.text))
			continue
		}

		b.WriteString("<\x00")
		b.WriteString(strconv.Itoa(len(slots)))
		b.WriteString(">")
		slots = append(slots, renderSlot(n))
	}

	out := boldPattern.ReplaceAllString(b.String(), "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")

	return slotPattern.ReplaceAllStringFunc(out, func(m string) string {
		i, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || i < 0 || i >= len(slots) {
			return ""
		}
		return slots[i]
	})
}

// extractLinks splits text nodes around [text](url) before anything is
// escaped, so the raw URL reaches the sanitizer intact.
func extractLinks(nodes []node) []node {
	out := make([]node, 0, len(nodes))
	for _, n := range nodes {
		if n.kind != nodeText {
			out = append(out, n)
			continue
		}

		s, last := n.text, 0
		for _, m := range linkPattern.FindAllStringSubmatchIndex(s, -1) {
			out = appendText(out, s[last:m[0]])
			out = append(out, node{
				kind: nodeLink,
				text: s[m[2]:m[3]],
				url:  s[m[4]:m[5]],
			})
			last = m[1]
		}
		out = appendText(out, s[last:])
	}

	return out
}

func renderSlot(n node) string {
	if n.kind != nodeLink {
		return n.html
	}

	return `<a href="` + html.EscapeString(SanitizeURL(n.url)) +
		`" target="_blank" rel="noopener">` + html.EscapeString(n.text) + `</a>`
}
