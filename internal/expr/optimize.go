package expr

// maxOptimizePasses bounds the fixed-point iteration. Every rule strictly
// shrinks or stabilizes the tree, so real inputs settle in two or three.
const maxOptimizePasses = 32

// OptimizeOption configures Optimize.
type OptimizeOption func(*optimizer)

// WithBatchSize splits In lists longer than n into an OR of In lists of at
// most n values. Zero or negative disables batching.
func WithBatchSize(n int) OptimizeOption {
	return func(o *optimizer) {
		o.batchSize = n
	}
}

type optimizer struct {
	batchSize int
}

// Optimize returns a semantically equivalent, structurally simpler tree.
// It never fails; shapes it does not recognize pass through unchanged.
// Rules are applied bottom-up until a pass no longer changes the tree, so
// Optimize(Optimize(e)) equals Optimize(e).
func Optimize(e Expr, opts ...OptimizeOption) Expr {
	if e == nil {
		return Empty
	}
	o := &optimizer{}
	for _, opt := range opts {
		opt(o)
	}

	for i := 0; i < maxOptimizePasses; i++ {
		next := o.rewrite(e, false)
		if Equal(next, e) {
			return next
		}
		e = next
	}
	return e
}

// rewrite simplifies one node. inOperation is set for direct children of
// an Operation, whose In lists are merged and batched by the parent.
func (o *optimizer) rewrite(e Expr, inOperation bool) Expr {
	switch n := e.(type) {
	case *Operation:
		children := make([]Expr, 0, len(n.Children))
		for _, c := range n.Children {
			if c == nil {
				continue
			}
			children = append(children, o.rewrite(c, true))
		}
		return o.simplify(n.Op, children, n.Boost)
	case *MustNot:
		if n.Expr == nil {
			return Empty
		}
		return negate(o.rewrite(n.Expr, inOperation))
	case *In:
		in := &In{Field: n.Field, Values: dedupe(n.Values), Boost: n.Boost}
		if !inOperation {
			if chunks := o.chunks(in); chunks != nil {
				return &Operation{Op: OpOr, Children: chunks, Boost: in.Boost}
			}
		}
		return in
	}
	return e
}

func negate(inner Expr) Expr {
	switch n := inner.(type) {
	case *sentinel:
		switch n.kind {
		case KindTrue, KindFindAll:
			return False
		case KindFalse:
			return True
		}
		return Empty
	case *MustNot:
		return n.Expr
	case *IsNull:
		return &IsNull{Field: n.Field, Negated: !n.Negated}
	}
	return &MustNot{Expr: inner}
}

func (o *optimizer) simplify(op BoolOp, children []Expr, boost float64) Expr {
	flat := make([]Expr, 0, len(children))
	for _, c := range children {
		if oc, ok := c.(*Operation); ok && oc.Op == op && oc.Boost == 0 {
			flat = append(flat, oc.Children...)
			continue
		}
		flat = append(flat, c)
	}

	kept, short, sawIdentity := dropSentinels(op, flat)
	if short != nil {
		return short
	}

	kept = mergeIn(op, kept)
	kept = mergeNegatedIn(op, kept)
	if op == OpAnd {
		kept = mergeRanges(kept)
		kept = mergeDays(kept)
	}

	kept, short, sawMore := dropSentinels(op, kept)
	if short != nil {
		return short
	}
	kept = o.batchChildren(op, kept)

	switch len(kept) {
	case 0:
		if sawIdentity || sawMore {
			if op == OpAnd {
				return True
			}
			return False
		}
		return Empty
	case 1:
		only := kept[0]
		if boost == 0 {
			return only
		}
		if BoostOf(only) == 0 {
			if b, ok := withBoost(only, boost); ok {
				return b
			}
		}
	}
	return &Operation{Op: op, Children: kept, Boost: boost}
}

// dropSentinels removes Empty and identity children. short is non-nil when
// an absorbing child decides the whole operation: False for AND, True for OR.
func dropSentinels(op BoolOp, children []Expr) (kept []Expr, short Expr, sawIdentity bool) {
	kept = make([]Expr, 0, len(children))
	for _, c := range children {
		switch c.Kind() {
		case KindEmpty:
			continue
		case KindTrue, KindFindAll:
			if op == OpOr {
				return nil, True, false
			}
			sawIdentity = true
			continue
		case KindFalse:
			if op == OpAnd {
				return nil, False, false
			}
			sawIdentity = true
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil, sawIdentity
}

// mergeIn folds same-field In children: AND keeps the intersection, OR
// the union. An empty intersection matches nothing.
func mergeIn(op BoolOp, children []Expr) []Expr {
	out := make([]Expr, 0, len(children))
	acc := make(map[string]*In)
	pos := make(map[string]int)
	for _, c := range children {
		in, ok := c.(*In)
		if !ok || in.Boost != 0 || len(in.Values) == 0 {
			out = append(out, c)
			continue
		}
		if a, seen := acc[in.Field]; seen {
			if op == OpAnd {
				a.Values = intersect(a.Values, in.Values)
			} else {
				a.Values = union(a.Values, in.Values)
			}
			continue
		}
		a := &In{Field: in.Field, Values: dedupe(in.Values)}
		acc[in.Field] = a
		pos[in.Field] = len(out)
		out = append(out, a)
	}
	for field, a := range acc {
		if len(a.Values) == 0 {
			out[pos[field]] = False
		}
	}
	return out
}

// mergeNegatedIn folds same-field MustNot(In) children. By De Morgan an
// AND of negations excludes the union of the value sets and an OR of
// negations excludes their intersection.
func mergeNegatedIn(op BoolOp, children []Expr) []Expr {
	out := make([]Expr, 0, len(children))
	acc := make(map[string]*In)
	pos := make(map[string]int)
	for _, c := range children {
		in := negatedIn(c)
		if in == nil {
			out = append(out, c)
			continue
		}
		if a, seen := acc[in.Field]; seen {
			if op == OpAnd {
				a.Values = union(a.Values, in.Values)
			} else {
				a.Values = intersect(a.Values, in.Values)
			}
			continue
		}
		a := &In{Field: in.Field, Values: dedupe(in.Values)}
		acc[in.Field] = a
		pos[in.Field] = len(out)
		out = append(out, &MustNot{Expr: a})
	}
	for field, a := range acc {
		if len(a.Values) == 0 {
			out[pos[field]] = True
		}
	}
	return out
}

func negatedIn(e Expr) *In {
	mn, ok := e.(*MustNot)
	if !ok {
		return nil
	}
	in, ok := mn.Expr.(*In)
	if !ok || in.Boost != 0 || len(in.Values) == 0 {
		return nil
	}
	return in
}

// mergeRanges turns a lower and an upper bound on the same field into a
// single Range when the bounds describe a non-empty interval.
func mergeRanges(children []Expr) []Expr {
	lower := make(map[string]int)
	upper := make(map[string]int)
	for i, c := range children {
		v, ok := c.(*Value)
		if !ok || v.Boost != 0 {
			continue
		}
		switch v.Op {
		case OpGe, OpGt:
			if _, seen := lower[v.Field]; !seen {
				lower[v.Field] = i
			}
		case OpLe, OpLt:
			if _, seen := upper[v.Field]; !seen {
				upper[v.Field] = i
			}
		}
	}

	out := append([]Expr(nil), children...)
	drop := make(map[int]bool)
	for field, li := range lower {
		ui, ok := upper[field]
		if !ok {
			continue
		}
		lo := children[li].(*Value)
		hi := children[ui].(*Value)
		cmp, ok := Compare(lo.Value, hi.Value)
		if !ok || cmp > 0 || (cmp == 0 && (lo.Op == OpGt || hi.Op == OpLt)) {
			continue
		}
		at, gone := li, ui
		if ui < li {
			at, gone = ui, li
		}
		out[at] = &Range{
			Field:       field,
			From:        lo.Value,
			To:          hi.Value,
			IncludeFrom: lo.Op == OpGe,
			IncludeTo:   hi.Op == OpLe,
		}
		drop[gone] = true
	}
	return without(out, drop)
}

// mergeDays turns a lower and an upper Day bound on the same field into a
// DayRange. Exclusive bounds move one day inwards.
func mergeDays(children []Expr) []Expr {
	lower := make(map[string]int)
	upper := make(map[string]int)
	for i, c := range children {
		d, ok := c.(*Day)
		if !ok {
			continue
		}
		switch d.Op {
		case OpGe, OpGt:
			if _, seen := lower[d.Field]; !seen {
				lower[d.Field] = i
			}
		case OpLe, OpLt:
			if _, seen := upper[d.Field]; !seen {
				upper[d.Field] = i
			}
		}
	}

	out := append([]Expr(nil), children...)
	drop := make(map[int]bool)
	for field, li := range lower {
		ui, ok := upper[field]
		if !ok {
			continue
		}
		lo := children[li].(*Day)
		hi := children[ui].(*Day)
		from := DateOf(lo.Date)
		if lo.Op == OpGt {
			from = from.AddDate(0, 0, 1)
		}
		to := DateOf(hi.Date)
		if hi.Op == OpLt {
			to = to.AddDate(0, 0, -1)
		}
		if from.After(to) {
			continue
		}
		at, gone := li, ui
		if ui < li {
			at, gone = ui, li
		}
		out[at] = &DayRange{Field: field, From: from, To: to}
		drop[gone] = true
	}
	return without(out, drop)
}

func without(children []Expr, drop map[int]bool) []Expr {
	if len(drop) == 0 {
		return children
	}
	out := make([]Expr, 0, len(children)-len(drop))
	for i, c := range children {
		if !drop[i] {
			out = append(out, c)
		}
	}
	return out
}

// batchChildren splits oversized In lists. Under OR the chunks join the
// parent directly; elsewhere they are grouped in their own OR.
func (o *optimizer) batchChildren(op BoolOp, children []Expr) []Expr {
	if o.batchSize <= 0 {
		return children
	}
	out := make([]Expr, 0, len(children))
	for _, c := range children {
		switch n := c.(type) {
		case *In:
			chunks := o.chunks(n)
			if chunks == nil {
				out = append(out, c)
			} else if op == OpOr && n.Boost == 0 {
				out = append(out, chunks...)
			} else {
				out = append(out, &Operation{Op: OpOr, Children: chunks, Boost: n.Boost})
			}
		case *MustNot:
			in, ok := n.Expr.(*In)
			if !ok {
				out = append(out, c)
				continue
			}
			chunks := o.chunks(in)
			if chunks == nil {
				out = append(out, c)
				continue
			}
			out = append(out, &MustNot{Expr: &Operation{Op: OpOr, Children: chunks, Boost: in.Boost}})
		default:
			out = append(out, c)
		}
	}
	return out
}

func (o *optimizer) chunks(in *In) []Expr {
	if o.batchSize <= 0 || len(in.Values) <= o.batchSize {
		return nil
	}
	var chunks []Expr
	for start := 0; start < len(in.Values); start += o.batchSize {
		end := min(start+o.batchSize, len(in.Values))
		chunks = append(chunks, &In{Field: in.Field, Values: append([]any(nil), in.Values[start:end]...)})
	}
	return chunks
}

