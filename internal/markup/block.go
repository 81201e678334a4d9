package markup

import "encoding/json"

type Kind string

const (
	KindText      Kind = "text"
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindList      Kind = "list"
	KindTable     Kind = "table"
	KindCode      Kind = "code"
)

// Block is one renderable unit of assistant output. The set of
// implementations is closed: Text, Heading, Paragraph, List, Table, Code.
type Block interface {
	Kind() Kind
	sealed()
}

// Content is the ordered block sequence of one assistant reply.
type Content []Block

type Text struct {
	Value string
}

type Heading struct {
	Level int
	Value string
}

type Paragraph struct {
	Value string
}

type List struct {
	Items []string
}

// Table rows are not required to match the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

type Code struct {
	Value string
}

func (Text) Kind() Kind      { return KindText }
func (Heading) Kind() Kind   { return KindHeading }
func (Paragraph) Kind() Kind { return KindParagraph }
func (List) Kind() Kind      { return KindList }
func (Table) Kind() Kind     { return KindTable }
func (Code) Kind() Kind      { return KindCode }

func (Text) sealed()      {}
func (Heading) sealed()   {}
func (Paragraph) sealed() {}
func (List) sealed()      {}
func (Table) sealed()     {}
func (Code) sealed()      {}

func (b Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: KindText, Value: b.Value})
}

func (b Heading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  Kind   `json:"kind"`
		Level int    `json:"level"`
		Value string `json:"value"`
	}{KindHeading, b.Level, b.Value})
}

func (b Paragraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: KindParagraph, Value: b.Value})
}

func (b List) MarshalJSON() ([]byte, error) {
	items := b.Items
	if items == nil {
		items = []string{}
	}
	return json.Marshal(struct {
		Kind  Kind     `json:"kind"`
		Items []string `json:"items"`
	}{KindList, items})
}

func (b Table) MarshalJSON() ([]byte, error) {
	header := b.Header
	if header == nil {
		header = []string{}
	}
	rows := b.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return json.Marshal(struct {
		Kind   Kind       `json:"kind"`
		Header []string   `json:"header"`
		Rows   [][]string `json:"rows"`
	}{KindTable, header, rows})
}

func (b Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: KindCode, Value: b.Value})
}

type valueJSON struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// PlainText flattens content into readable text, one block per line.
// Table cells are joined with " | ".
func (c Content) PlainText() string {
	var out []byte
	for i, b := range c {
		if i > 0 {
			out = append(out, '\n')
		}
		switch v := b.(type) {
		case Text:
			out = append(out, v.Value...)
		case Heading:
			out = append(out, v.Value...)
		case Paragraph:
			out = append(out, v.Value...)
		case List:
			for j, item := range v.Items {
				if j > 0 {
					out = append(out, '\n')
				}
				out = append(out, "- "...)
				out = append(out, item...)
			}
		case Table:
			out = appendCells(out, v.Header)
			for _, row := range v.Rows {
				out = append(out, '\n')
				out = appendCells(out, row)
			}
		case Code:
			out = append(out, v.Value...)
		}
	}
	return string(out)
}

func appendCells(out []byte, cells []string) []byte {
	for i, cell := range cells {
		if i > 0 {
			out = append(out, " | "...)
		}
		out = append(out, cell...)
	}
	return out
}
