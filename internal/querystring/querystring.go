// Package querystring normalizes free-text queries typed by end users into
// the canonical boolean syntax understood by the backend: terms and quoted
// phrases joined by "&&", "||" and "NOT", with explicit parentheses.
//
// Processing runs in four steps: tokenize, replace operator synonyms,
// insert a default operator between adjacent terms, and bracket AND runs so
// that AND binds tighter than OR. The last two steps are optional and only
// run when the user wrote no parentheses of their own.
package querystring

import "strings"

// Canonical operator tokens.
const (
	OpAnd = "&&"
	OpOr  = "||"
	OpNot = "NOT"
)

// Config controls tokenization and the optional rewriting steps.
type Config struct {
	// Delimiters split tokens and are dropped from the output.
	Delimiters string

	// Separators split tokens and are kept as tokens of their own. A run of
	// the same separator character forms one token, so "&&" stays whole.
	Separators string

	// EscapeChar glues the following character into the current token and
	// stops that token from being read as an operator. Zero disables it.
	EscapeChar rune

	// Replacements maps lower-case synonyms to OpAnd, OpOr or OpNot.
	Replacements map[string]string

	// DefaultOperator is inserted between adjacent terms. Empty disables
	// insertion.
	DefaultOperator string

	// AutoBracket groups AND runs in parentheses when OR is also present.
	AutoBracket bool
}

// DefaultReplacements recognizes punctuation and English and German
// operator words.
func DefaultReplacements() map[string]string {
	return map[string]string{
		",":     OpOr,
		"|":     OpOr,
		"||":    OpOr,
		"or":    OpOr,
		"oder":  OpOr,
		"&":     OpAnd,
		"&&":    OpAnd,
		"+":     OpAnd,
		"and":   OpAnd,
		"und":   OpAnd,
		"-":     OpNot,
		"!":     OpNot,
		"not":   OpNot,
		"nicht": OpNot,
	}
}

// DefaultConfig returns a configuration with both rewriting steps enabled
// and AND as the default operator.
func DefaultConfig() Config {
	return Config{
		Delimiters:      " \t\r\n",
		Separators:      ",()&|",
		EscapeChar:      '\\',
		Replacements:    DefaultReplacements(),
		DefaultOperator: OpAnd,
		AutoBracket:     true,
	}
}

// Preprocessor rewrites query strings. It is immutable and safe for
// concurrent use.
type Preprocessor struct {
	cfg Config
}

// New returns a Preprocessor for cfg. Empty Delimiters, Separators or
// Replacements fall back to the defaults.
func New(cfg Config) *Preprocessor {
	def := DefaultConfig()
	if cfg.Delimiters == "" {
		cfg.Delimiters = def.Delimiters
	}
	if cfg.Separators == "" {
		cfg.Separators = def.Separators
	}
	if cfg.Replacements == nil {
		cfg.Replacements = def.Replacements
	}
	if op, ok := cfg.Replacements[strings.ToLower(cfg.DefaultOperator)]; ok {
		cfg.DefaultOperator = op
	}
	return &Preprocessor{cfg: cfg}
}

// Process returns the canonical form of query. It never fails: stray
// operators are kept and left for the backend to judge.
func (p *Preprocessor) Process(query string) string {
	tokens := tokenize(query, p.cfg)
	tokens = replace(tokens, p.cfg.Replacements)

	if hasParens(tokens) {
		return render(tokens)
	}
	if p.cfg.DefaultOperator != "" {
		tokens = insertDefaultOperator(tokens, p.cfg.DefaultOperator)
	}
	if p.cfg.AutoBracket {
		tokens = autoBracket(tokens)
	}
	return render(tokens)
}

// Process normalizes query with DefaultConfig.
func Process(query string) string {
	return New(DefaultConfig()).Process(query)
}

func render(tokens []token) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && tokens[i-1].kind != kindOpen && t.kind != kindClose {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}
