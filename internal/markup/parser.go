// Package markup converts the assistant's bracket-tag markup into typed
// content blocks.
//
// Six tags are recognised: [section], [subsection], [p], [list] (with
// [item] entries), [table] (with [row] and [header] segments) and [code].
// Anything that does not form a complete tag pair is kept as literal text.
package markup

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern *regexp.Regexp
	build   func(body string) Block
}

// rules are applied in this order; output is grouped by rule, see Parse.
var rules = []rule{
	{pattern: tagPattern("section"), build: func(body string) Block { return Heading{Level: 1, Value: body} }},
	{pattern: tagPattern("subsection"), build: func(body string) Block { return Heading{Level: 2, Value: body} }},
	{pattern: tagPattern("p"), build: func(body string) Block { return Paragraph{Value: body} }},
	{pattern: tagPattern("list"), build: buildList},
	{pattern: tagPattern("table"), build: buildTable},
	{pattern: tagPattern("code"), build: func(body string) Block { return Code{Value: body} }},
}

func tagPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)\[` + tag + `\](.*?)\[/` + tag + `\]`)
}

// Parse never fails. Each rule scans the whole input in turn and all rules
// share one cursor: the text between the cursor and a match is emitted as a
// Text block before the match, and whatever lies past the final cursor
// position is emitted last. A later rule whose match starts before the
// cursor moves it back to that match's end, so source text already covered
// by an earlier rule can be emitted again in the tail. Blocks therefore come
// out grouped by tag kind (section, subsection, p, list, table, code) rather
// than in document order, which existing assistant content relies on.
func Parse(input string) Content {
	out := Content{}
	cursor := 0
	for _, r := range rules {
		for _, m := range r.pattern.FindAllStringSubmatchIndex(input, -1) {
			start, end := m[0], m[1]
			if start > cursor {
				out = append(out, Text{Value: input[cursor:start]})
			}
			out = append(out, r.build(input[m[2]:m[3]]))
			cursor = end
		}
	}
	if cursor < len(input) {
		out = append(out, Text{Value: input[cursor:]})
	}
	if len(out) == 0 {
		// Only the empty string gets here.
		return Content{Text{Value: input}}
	}
	return out
}

func buildList(body string) Block {
	items := []string{}
	for _, seg := range nonEmpty(strings.Split(body, "[item]")) {
		items = append(items, strings.Replace(seg, "[/item]", "", 1))
	}
	return List{Items: items}
}

func buildTable(body string) Block {
	segs := nonEmpty(strings.Split(body, "[row]"))
	if len(segs) == 0 {
		return Table{Header: []string{}, Rows: [][]string{}}
	}
	head := segs[0]
	head = strings.Replace(head, "[header]", "", 1)
	head = strings.Replace(head, "[/header]", "", 1)
	head = strings.Replace(head, "[/row]", "", 1)

	rows := make([][]string, 0, len(segs)-1)
	for _, seg := range segs[1:] {
		rows = append(rows, strings.Split(strings.Replace(seg, "[/row]", "", 1), "|"))
	}
	return Table{Header: strings.Split(head, "|"), Rows: rows}
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
