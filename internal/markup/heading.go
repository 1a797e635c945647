package markup

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DeepHeadings reports ATX headings with more than six hashes as headings
// of their literal depth instead of paragraphs. Consumers clamp the level.
var DeepHeadings goldmark.Extender = &deepHeadings{}

type deepHeadings struct{}

func (e *deepHeadings) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		// Ahead of the stock ATX parser (600), which rejects these lines.
		util.Prioritized(&deepHeadingParser{}, 599),
	))
}

const minDeepLevel = 7

type deepHeadingParser struct{}

func (p *deepHeadingParser) Trigger() []byte {
	return []byte{'#'}
}

func (p *deepHeadingParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 {
		return nil, parser.NoChildren
	}
	i := pos
	for i < len(line) && line[i] == '#' {
		i++
	}
	level := i - pos
	if level < minDeepLevel {
		return nil, parser.NoChildren
	}
	if i < len(line) && !util.IsSpace(line[i]) {
		return nil, parser.NoChildren
	}

	start := i
	for start < len(line) && util.IsSpace(line[start]) {
		start++
	}
	stop := len(line) - util.TrimRightSpaceLength(line)

	// Optional closing sequence: a run of hashes preceded by a space.
	closing := stop
	for closing > start && line[closing-1] == '#' {
		closing--
	}
	if closing < stop && (closing == start || util.IsSpace(line[closing-1])) {
		stop = closing
		for stop > start && util.IsSpace(line[stop-1]) {
			stop--
		}
	}

	node := ast.NewHeading(level)
	if start < stop {
		node.Lines().Append(text.NewSegment(segment.Start+start, segment.Start+stop))
	}
	reader.Advance(segment.Len() - 1)
	return node, parser.NoChildren
}

func (p *deepHeadingParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	return parser.Close
}

func (p *deepHeadingParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *deepHeadingParser) CanInterruptParagraph() bool {
	return true
}

func (p *deepHeadingParser) CanAcceptIndentedLine() bool {
	return false
}
