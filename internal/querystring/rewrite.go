package querystring

// insertDefaultOperator puts op between two adjacent terms and between a
// term and a following NOT.
func insertDefaultOperator(tokens []token, op string) []token {
	opToken := operatorToken(op)
	out := make([]token, 0, len(tokens)*2)
	for _, t := range tokens {
		if n := len(out); n > 0 && out[n-1].isOperand() && (t.isOperand() || t.kind == kindNot) {
			out = append(out, opToken)
		}
		out = append(out, t)
	}
	return out
}

func operatorToken(op string) token {
	switch op {
	case OpOr:
		return token{text: OpOr, kind: kindOr}
	case OpNot:
		return token{text: OpNot, kind: kindNot}
	}
	return token{text: OpAnd, kind: kindAnd}
}

// autoBracket wraps every AND run that sits next to an OR in parentheses.
// A run spans from its first term or NOT to its last term; stray AND
// tokens at its edges stay outside the brackets.
func autoBracket(tokens []token) []token {
	var hasAnd, hasOr bool
	for _, t := range tokens {
		hasAnd = hasAnd || t.kind == kindAnd
		hasOr = hasOr || t.kind == kindOr
	}
	if !hasAnd || !hasOr {
		return tokens
	}

	out := make([]token, 0, len(tokens)+4)
	start := 0
	for i := 0; i <= len(tokens); i++ {
		if i < len(tokens) && tokens[i].kind != kindOr {
			continue
		}
		out = append(out, bracketRun(tokens[start:i])...)
		if i < len(tokens) {
			out = append(out, tokens[i])
		}
		start = i + 1
	}
	return out
}

func bracketRun(run []token) []token {
	first, last := -1, -1
	for i, t := range run {
		if first < 0 && (t.isOperand() || t.kind == kindNot) {
			first = i
		}
		if t.isOperand() {
			last = i
		}
	}
	if first < 0 || last <= first {
		return run
	}

	operands, ands := 0, 0
	for _, t := range run[first : last+1] {
		switch t.kind {
		case kindTerm:
			operands++
		case kindAnd:
			ands++
		}
	}
	if operands < 2 || ands == 0 {
		return run
	}

	out := make([]token, 0, len(run)+2)
	out = append(out, run[:first]...)
	out = append(out, token{text: "(", kind: kindOpen})
	out = append(out, run[first:last+1]...)
	out = append(out, token{text: ")", kind: kindClose})
	out = append(out, run[last+1:]...)
	return out
}
