package highlight

import (
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

var (
	lexerCache   = make(map[string]chroma.Lexer)
	lexerCacheMu sync.RWMutex
)

func lexerFor(lang string) chroma.Lexer {
	lexerCacheMu.RLock()
	lexer, ok := lexerCache[lang]
	lexerCacheMu.RUnlock()
	if ok {
		return lexer
	}

	lexer = lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Match("file." + lang)
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}

	// Misses are cached too so unknown languages are looked up once.
	lexerCacheMu.Lock()
	lexerCache[lang] = lexer
	lexerCacheMu.Unlock()
	return lexer
}

// codeTokens tokenises a fence body located at offset in the source.
func codeTokens(code string, offset int, lang string) []Span {
	lexer := lexerFor(lang)
	if lexer == nil {
		return nil
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil
	}

	end := offset + len(code)
	var spans []Span
	pos := offset
	for _, tok := range iterator.Tokens() {
		if pos >= end {
			break
		}
		n := len(tok.Value)
		if class := tokenClass(tok.Type); class != "" && n > 0 {
			spans = append(spans, Span{
				Start: pos,
				End:   min(pos+n, end),
				Kind:  KindCodeToken,
				Token: class,
			})
		}
		pos += n
	}
	return spans
}

func tokenClass(tt chroma.TokenType) string {
	switch tt.Category() {
	case chroma.Keyword:
		return "keyword"
	case chroma.Name:
		return "name"
	case chroma.Literal:
		switch {
		case tt.InSubCategory(chroma.LiteralString):
			return "string"
		case tt.InSubCategory(chroma.LiteralNumber):
			return "number"
		}
		return "literal"
	case chroma.Comment:
		return "comment"
	case chroma.Operator:
		return "operator"
	case chroma.Punctuation:
		return "punctuation"
	}
	return ""
}
