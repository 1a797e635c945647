package highlight

import (
	"sort"
	"strings"
)

// inlineIndex answers closer lookups for one line. Each table is built on
// first use, so a line is scanned a bounded number of times no matter how
// many unmatched openers it holds.
type inlineIndex struct {
	s string

	closers  map[byte]*delimRuns
	ticks    map[int][]int
	brackets map[int]int
	parens   map[int]int

	gt   int
	noGT bool
}

// delimRuns lists the delimiter runs of one character that may close
// emphasis, with the longest run at or after each entry.
type delimRuns struct {
	pos, length, longest []int
}

func newInlineIndex(s string) *inlineIndex {
	return &inlineIndex{s: s, gt: -1}
}

func inlineSpans(s string, base int) []Span {
	var spans []Span
	x := newInlineIndex(s)
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\':
			i += 2
			continue
		case c == '`':
			run := countRun(s, i, '`')
			if close := x.codeClose(i, run); close >= 0 {
				i = close + run
			} else {
				i += run
			}
			continue
		case c == '!' && i+1 < len(s) && s[i+1] == '[':
			if end := x.linkEnd(i + 1); end > 0 {
				spans = append(spans, Span{Start: base + i, End: base + end, Kind: KindLink})
				i = end
				continue
			}
		case c == '[':
			if end := x.linkEnd(i); end > 0 {
				spans = append(spans, Span{Start: base + i, End: base + end, Kind: KindLink})
				i = end
				continue
			}
		case c == '<':
			if end := x.autolinkEnd(i); end > 0 {
				spans = append(spans, Span{Start: base + i, End: base + end, Kind: KindLink})
				i = end
				continue
			}
		case c == '*' || c == '_' || c == '~':
			run := countRun(s, i, c)
			if end := x.emphasisEnd(i, c, run); end > 0 {
				spans = append(spans, Span{Start: base + i, End: base + end, Kind: KindEmphasis})
				i = end
				continue
			}
			i += run
			continue
		}
		i++
	}
	return spans
}

func countRun(s string, i int, c byte) int {
	n := 0
	for i+n < len(s) && s[i+n] == c {
		n++
	}
	return n
}

// codeClose returns the start of the next backtick run after the opener at
// i with exactly n backticks, or -1.
func (x *inlineIndex) codeClose(i, n int) int {
	if x.ticks == nil {
		x.ticks = make(map[int][]int)
		for j := 0; j < len(x.s); {
			if x.s[j] != '`' {
				j++
				continue
			}
			r := countRun(x.s, j, '`')
			x.ticks[r] = append(x.ticks[r], j)
			j += r
		}
	}
	starts := x.ticks[n]
	k := sort.SearchInts(starts, i+n)
	if k == len(starts) {
		return -1
	}
	return starts[k]
}

// emphasisEnd finds the closing delimiter run for an opening run of n
// markers at i and returns the offset just past it.
func (x *inlineIndex) emphasisEnd(i int, c byte, n int) int {
	s := x.s
	if c == '~' && n < 2 {
		return -1
	}
	if c == '_' && i > 0 && isWordByte(s[i-1]) {
		return -1
	}
	from := i + n
	if from >= len(s) || s[from] == ' ' || s[from] == '\t' {
		return -1
	}

	runs := x.delims(c)
	k := sort.SearchInts(runs.pos, from+1)
	if k == len(runs.pos) || runs.longest[k] < n {
		return -1
	}
	for runs.length[k] < n {
		k++
	}
	return runs.pos[k] + n
}

func (x *inlineIndex) delims(c byte) *delimRuns {
	if runs, ok := x.closers[c]; ok {
		return runs
	}
	s := x.s
	runs := &delimRuns{}
	for j := 0; j < len(s); {
		if s[j] != c {
			j++
			continue
		}
		r := countRun(s, j, c)
		closes := j > 0 && s[j-1] != ' '
		if c == '_' && j+r < len(s) && isWordByte(s[j+r]) {
			closes = false
		}
		if closes {
			runs.pos = append(runs.pos, j)
			runs.length = append(runs.length, r)
		}
		j += r
	}
	runs.longest = make([]int, len(runs.length))
	longest := 0
	for k := len(runs.length) - 1; k >= 0; k-- {
		longest = max(longest, runs.length[k])
		runs.longest[k] = longest
	}

	if x.closers == nil {
		x.closers = make(map[byte]*delimRuns)
	}
	x.closers[c] = runs
	return runs
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// linkEnd matches "[text](dest)" starting at the '[' at i.
func (x *inlineIndex) linkEnd(i int) int {
	if x.brackets == nil {
		x.brackets = matchPairs(x.s, '[', ']', true)
		x.parens = matchPairs(x.s, '(', ')', false)
	}
	j, ok := x.brackets[i]
	if !ok || j+1 >= len(x.s) || x.s[j+1] != '(' {
		return -1
	}
	k, ok := x.parens[j+1]
	if !ok {
		return -1
	}
	return k + 1
}

// matchPairs maps each opening byte to its balanced closing byte.
func matchPairs(s string, open, close byte, escapes bool) map[int]int {
	pairs := make(map[int]int)
	var stack []int
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if escapes {
				j++
			}
		case open:
			stack = append(stack, j)
		case close:
			if n := len(stack); n > 0 {
				pairs[stack[n-1]] = j
				stack = stack[:n-1]
			}
		}
	}
	return pairs
}

func (x *inlineIndex) autolinkEnd(i int) int {
	if x.gt < i && !x.noGT {
		if g := strings.IndexByte(x.s[i:], '>'); g >= 0 {
			x.gt = i + g
		} else {
			x.noGT = true
		}
	}
	if x.gt < i {
		return -1
	}
	inner := x.s[i+1 : x.gt]
	if inner == "" || strings.ContainsAny(inner, " \t<") {
		return -1
	}
	if !strings.Contains(inner, "://") && !strings.Contains(inner, "@") {
		return -1
	}
	return x.gt + 1
}
