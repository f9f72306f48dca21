package querystring

import "strings"

type tokenKind int

const (
	kindTerm tokenKind = iota
	kindAnd
	kindOr
	kindNot
	kindOpen
	kindClose
)

type token struct {
	text string
	kind tokenKind
	// literal is set for tokens containing a quoted phrase or an escaped
	// character. They are never read as operators.
	literal bool
}

func (t token) isOperand() bool {
	return t.kind == kindTerm
}

// prefixOperators are split off the front of a word, so "-draft" reads
// as NOT draft while "e-mail" stays one term.
const prefixOperators = "-+!"

// tokenize splits query into terms, phrases and separator tokens. A quoted
// span is copied verbatim, delimiters included; an unterminated phrase is
// closed at the end of input.
func tokenize(query string, cfg Config) []token {
	var (
		tokens  []token
		current strings.Builder
		literal bool
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		tokens = append(tokens, token{text: current.String(), literal: literal})
		current.Reset()
		literal = false
	}

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case cfg.EscapeChar != 0 && r == cfg.EscapeChar:
			current.WriteRune(r)
			if i+1 < len(runes) {
				i++
				current.WriteRune(runes[i])
				literal = true
			}
		case r == '"':
			current.WriteRune(r)
			literal = true
			closed := false
			for i+1 < len(runes) {
				i++
				current.WriteRune(runes[i])
				if runes[i] == '"' && runes[i-1] != cfg.EscapeChar {
					closed = true
					break
				}
			}
			if !closed {
				current.WriteRune('"')
			}
		case strings.ContainsRune(cfg.Delimiters, r):
			flush()
		case strings.ContainsRune(cfg.Separators, r):
			flush()
			j := i
			for j+1 < len(runes) && runes[j+1] == r {
				j++
			}
			tokens = append(tokens, token{text: string(runes[i : j+1]), kind: separatorKind(r)})
			i = j
		case current.Len() == 0 && strings.ContainsRune(prefixOperators, r):
			tokens = append(tokens, token{text: string(r)})
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func separatorKind(r rune) tokenKind {
	switch r {
	case '(':
		return kindOpen
	case ')':
		return kindClose
	}
	return kindTerm
}

// replace maps operator synonyms to canonical operator tokens. Lookup is
// case-insensitive; literal tokens are left alone.
func replace(tokens []token, table map[string]string) []token {
	out := make([]token, len(tokens))
	for i, t := range tokens {
		out[i] = t
		if t.literal || t.kind != kindTerm {
			continue
		}
		canonical := t.text
		if mapped, ok := table[strings.ToLower(t.text)]; ok {
			canonical = mapped
		}
		switch canonical {
		case OpAnd:
			out[i] = token{text: OpAnd, kind: kindAnd}
		case OpOr:
			out[i] = token{text: OpOr, kind: kindOr}
		case OpNot:
			out[i] = token{text: OpNot, kind: kindNot}
		}
	}
	return out
}

func hasParens(tokens []token) bool {
	for _, t := range tokens {
		if t.kind == kindOpen || t.kind == kindClose {
			return true
		}
	}
	return false
}
