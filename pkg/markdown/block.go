package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`^(#{1,3})[ \t]+`)
	rulePattern    = regexp.MustCompile(`^(?:-{3,}|\*{3,})$`)
	listPattern    = regexp.MustCompile(`^[-*][ \t]+`)
)

// line is either a fenced code block or a run of inline nodes that made up
// one source line.
type line struct {
	block string
	nodes []node
}

func (l line) isBlock() bool {
	return l.block != ""
}

// splitLines breaks the node sequence on newlines. A fenced block always
// stands on its own line; the newline that follows its closing fence belongs
// to the block.
func splitLines(nodes []node) []line {
	var (
		lines      []line
		cur        []node
		afterBlock bool
	)

	for _, n := range nodes {
		switch n.kind {
		case nodeBlock:
			if len(cur) > 0 {
				lines = append(lines, line{nodes: cur})
				cur = nil
			}
			lines = append(lines, line{block: n.html})
			afterBlock = true

		case nodeText:
			text := n.text
			if afterBlock {
				text = strings.TrimPrefix(text, "\n")
				afterBlock = false
			}
			for i, part := range strings.Split(text, "\n") {
				if i > 0 {
					lines = append(lines, line{nodes: cur})
					cur = nil
				}
				cur = appendText(cur, part)
			}

		default:
			afterBlock = false
			cur = append(cur, n)
		}
	}

	if len(cur) > 0 {
		lines = append(lines, line{nodes: cur})
	}

	return lines
}

// trimLine strips surrounding whitespace from a line's outer text nodes.
func trimLine(nodes []node) []node {
	out := append([]node(nil), nodes...)

	if len(out) > 0 && out[0].kind == nodeText {
		out[0].text = strings.TrimLeft(out[0].text, " \t\r")
		if out[0].text == "" {
			out = out[1:]
		}
	}

	if n := len(out); n > 0 && out[n-1].kind == nodeText {
		out[n-1].text = strings.TrimRight(out[n-1].text, " \t\r")
		if out[n-1].text == "" {
			out = out[:n-1]
		}
	}

	return out
}

// withHead replaces the leading text node with rest, dropping it when empty.
func withHead(nodes []node, rest string) []node {
	out := append([]node(nil), nodes...)
	if rest == "" {
		return out[1:]
	}
	out[0].text = rest
	return out
}

type blockKind int

const (
	blockNone blockKind = iota
	blockList
	blockQuote
)

// blockWriter is the line-oriented state machine. Paragraph is the default
// state; lists and blockquotes accumulate rendered items until a line of
// another kind closes them.
type blockWriter struct {
	out   strings.Builder
	open  blockKind
	items []string

	wrote        bool
	pendingBreak bool
}

func (w *blockWriter) writeLine(l line) {
	if l.isBlock() {
		w.close()
		w.emit(l.block)
		return
	}

	nodes := trimLine(l.nodes)
	if len(nodes) == 0 {
		w.blank()
		return
	}

	var head string
	if nodes[0].kind == nodeText {
		head = nodes[0].text
	}

	if m := headingPattern.FindStringSubmatchIndex(head); m != nil {
		level := strconv.Itoa(m[3] - m[2])
		w.close()
		w.emit("<h" + level + ">" + renderInline(withHead(nodes, head[m[1]:])) + "</h" + level + ">")
		return
	}

	if len(nodes) == 1 && rulePattern.MatchString(head) {
		w.close()
		w.emit("<hr/>")
		return
	}

	if head == ">" || strings.HasPrefix(head, "> ") {
		rest := strings.TrimPrefix(strings.TrimPrefix(head, ">"), " ")
		w.push(blockQuote, renderInline(withHead(nodes, rest)))
		return
	}

	if m := listPattern.FindStringIndex(head); m != nil {
		w.push(blockList, renderInline(withHead(nodes, head[m[1]:])))
		return
	}

	w.close()
	w.emit("<p>" + renderInline(nodes) + "</p>")
}

// blank closes any open block and requests a single break before the next
// emitted element. Runs of blank lines, and blanks at the very start or end of
// the document, produce no extra breaks.
func (w *blockWriter) blank() {
	w.close()
	if w.wrote {
		w.pendingBreak = true
	}
}

func (w *blockWriter) push(kind blockKind, item string) {
	if w.open != kind {
		w.close()
		w.open = kind
	}
	w.items = append(w.items, item)
}

func (w *blockWriter) close() {
	switch w.open {
	case blockList:
		var b strings.Builder
		b.WriteString("<ul>")
		for _, item := range w.items {
			b.WriteString("<li>")
			b.WriteString(item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		w.emit(b.String())
	case blockQuote:
		w.emit("<blockquote>" + strings.Join(w.items, "<br/>") + "</blockquote>")
	}

	w.open = blockNone
	w.items = nil
}

func (w *blockWriter) emit(s string) {
	if w.pendingBreak {
		w.out.WriteString("<br/>")
		w.pendingBreak = false
	}
	w.out.WriteString(s)
	w.wrote = true
}

func (w *blockWriter) String() string {
	w.close()
	return w.out.String()
}
