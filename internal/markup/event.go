// Package markup defines the parse event stream consumed by the converter
// and produces it from markdown source with goldmark.
package markup

import "fmt"

// Kind distinguishes open, close and atomic events.
type Kind int

const (
	KindStart Kind = iota
	KindEnd
	KindText
	KindCode
	KindSoftBreak
	KindHardBreak
	KindRule
	KindPageBreak
	KindTaskMarker
	KindFootnoteRef
)

var kindNames = [...]string{
	KindStart:       "start",
	KindEnd:         "end",
	KindText:        "text",
	KindCode:        "code",
	KindSoftBreak:   "softbreak",
	KindHardBreak:   "hardbreak",
	KindRule:        "rule",
	KindPageBreak:   "pagebreak",
	KindTaskMarker:  "taskmarker",
	KindFootnoteRef: "footnoteref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Tag names the container opened or closed by a Start/End event.
type Tag int

const (
	TagNone Tag = iota
	TagParagraph
	TagHeading
	TagList
	TagItem
	TagCodeBlock
	TagBlockQuote
	TagTable
	TagTableHead
	TagTableRow
	TagTableCell
	TagEmphasis
	TagStrong
	TagStrikethrough
	TagSuperscript
	TagSubscript
	TagLink
	TagImage
	TagFootnoteDefinition
)

var tagNames = [...]string{
	TagNone:               "none",
	TagParagraph:          "paragraph",
	TagHeading:            "heading",
	TagList:               "list",
	TagItem:               "item",
	TagCodeBlock:          "codeblock",
	TagBlockQuote:         "blockquote",
	TagTable:              "table",
	TagTableHead:          "tablehead",
	TagTableRow:           "tablerow",
	TagTableCell:          "tablecell",
	TagEmphasis:           "emphasis",
	TagStrong:             "strong",
	TagStrikethrough:      "strikethrough",
	TagSuperscript:        "superscript",
	TagSubscript:          "subscript",
	TagLink:               "link",
	TagImage:              "image",
	TagFootnoteDefinition: "footnotedef",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Alignment is a declared table column alignment.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Event is one notification of the flat parse stream. Only the payload
// fields relevant to Kind and Tag are set.
type Event struct {
	Kind Kind
	Tag  Tag

	// Text carries text and code span content, and footnote labels.
	Text string

	Level  int    // heading level as reported by the source
	Anchor string // heading id attribute

	Ordered bool // list
	Start   int  // first number of an ordered list

	Language string // code fence info

	Dest  string // link or image destination
	Title string // link or image title

	Alignments []Alignment // table

	Checked bool // task marker
}

func (e Event) String() string {
	switch e.Kind {
	case KindStart, KindEnd:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Tag)
	case KindText, KindCode, KindFootnoteRef:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	case KindTaskMarker:
		return fmt.Sprintf("%s(%t)", e.Kind, e.Checked)
	}
	return e.Kind.String()
}

// Start returns an open event for tag.
func Start(tag Tag) Event { return Event{Kind: KindStart, Tag: tag} }

// End returns a close event for tag.
func End(tag Tag) Event { return Event{Kind: KindEnd, Tag: tag} }

// Text returns an inline text event.
func Text(s string) Event { return Event{Kind: KindText, Text: s} }

// Code returns an inline code span event.
func Code(s string) Event { return Event{Kind: KindCode, Text: s} }

// HeadingStart opens a heading of the given source level.
func HeadingStart(level int) Event {
	return Event{Kind: KindStart, Tag: TagHeading, Level: level}
}

// ListStart opens a list; start is only meaningful when ordered.
func ListStart(ordered bool, start int) Event {
	return Event{Kind: KindStart, Tag: TagList, Ordered: ordered, Start: start}
}

// CodeBlockStart opens a code block with an optional language.
func CodeBlockStart(lang string) Event {
	return Event{Kind: KindStart, Tag: TagCodeBlock, Language: lang}
}

// LinkStart opens a link to dest.
func LinkStart(dest string) Event {
	return Event{Kind: KindStart, Tag: TagLink, Dest: dest}
}

// ImageStart opens an image referencing dest.
func ImageStart(dest string) Event {
	return Event{Kind: KindStart, Tag: TagImage, Dest: dest}
}

// TableStart opens a table with declared column alignments.
func TableStart(aligns ...Alignment) Event {
	return Event{Kind: KindStart, Tag: TagTable, Alignments: aligns}
}

// TaskMarker marks the current list item as a task.
func TaskMarker(checked bool) Event {
	return Event{Kind: KindTaskMarker, Checked: checked}
}

// FootnoteRef references the footnote with the given label.
func FootnoteRef(label string) Event {
	return Event{Kind: KindFootnoteRef, Text: label}
}

// Simple atomic events.
var (
	SoftBreak = Event{Kind: KindSoftBreak}
	HardBreak = Event{Kind: KindHardBreak}
	Rule      = Event{Kind: KindRule}
	PageBreak = Event{Kind: KindPageBreak}
)
