// Package expr defines the caller-facing search expression tree.
//
// An Expr is an immutable node of a boolean predicate tree over named,
// typed fields. The set of node types is closed: Expr carries an unexported
// marker method so only this package can add variants, and Kind lets
// callers switch exhaustively over them.
//
// Trees are built with the constructors in build.go, simplified with
// Optimize and compiled to a backend query plan by internal/compiler.
package expr

import "time"

// Kind identifies the variant of an Expr.
type Kind int

const (
	KindEmpty Kind = iota
	KindTrue
	KindFalse
	KindFindAll
	KindValue
	KindRange
	KindIn
	KindIsNull
	KindKeyword
	KindFulltext
	KindMustNot
	KindOperation
	KindDay
	KindDayRange
)

var kindNames = [...]string{
	KindEmpty:     "empty",
	KindTrue:      "true",
	KindFalse:     "false",
	KindFindAll:   "find_all",
	KindValue:     "value",
	KindRange:     "range",
	KindIn:        "in",
	KindIsNull:    "is_null",
	KindKeyword:   "keyword",
	KindFulltext:  "fulltext",
	KindMustNot:   "must_not",
	KindOperation: "operation",
	KindDay:       "day",
	KindDayRange:  "day_range",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Expr is a node of the predicate tree.
type Expr interface {
	// Kind returns the variant of this node.
	Kind() Kind

	// String renders a human-readable form, used in logs and test failures.
	String() string

	isExpr()
}

// Operator is the comparison applied by Value and Day nodes.
type Operator int

const (
	OpEq Operator = iota
	OpGt
	OpGe
	OpLt
	OpLe
	OpStartsWith
	OpEndsWith
	OpContains
	OpLike
)

var operatorSymbols = [...]string{
	OpEq:         "=",
	OpGt:         ">",
	OpGe:         ">=",
	OpLt:         "<",
	OpLe:         "<=",
	OpStartsWith: "STARTS WITH",
	OpEndsWith:   "ENDS WITH",
	OpContains:   "CONTAINS",
	OpLike:       "LIKE",
}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorSymbols) {
		return "?"
	}
	return operatorSymbols[o]
}

// IsWildcard reports whether the operator needs pattern matching on an
// untokenized value.
func (o Operator) IsWildcard() bool {
	switch o {
	case OpStartsWith, OpEndsWith, OpContains, OpLike:
		return true
	}
	return false
}

// IsComparison reports whether the operator is an ordering comparison.
func (o Operator) IsComparison() bool {
	switch o {
	case OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// BoolOp combines the children of an Operation.
type BoolOp int

const (
	OpAnd BoolOp = iota
	OpOr
)

func (b BoolOp) String() string {
	if b == OpOr {
		return "OR"
	}
	return "AND"
}

// sentinel implements Empty, True, False and FindAll.
type sentinel struct {
	kind Kind
}

func (s *sentinel) Kind() Kind { return s.kind }
func (*sentinel) isExpr()      {}

var (
	// Empty is the absence of a constraint. Operations drop it.
	Empty Expr = &sentinel{kind: KindEmpty}
	// True matches every document.
	True Expr = &sentinel{kind: KindTrue}
	// False matches no document.
	False Expr = &sentinel{kind: KindFalse}
	// FindAll explicitly requests all documents of the index.
	FindAll Expr = &sentinel{kind: KindFindAll}
)

// Value compares a field against a single value.
type Value struct {
	Field string
	Op    Operator
	Value any
	Boost float64
}

func (*Value) Kind() Kind { return KindValue }
func (*Value) isExpr()    {}

// Range matches field values between From and To. A nil bound is open.
type Range struct {
	Field       string
	From        any
	To          any
	IncludeFrom bool
	IncludeTo   bool
	Boost       float64
}

func (*Range) Kind() Kind { return KindRange }
func (*Range) isExpr()    {}

// In matches when the field equals any of Values. An empty Values list
// asks for documents where the field exists.
type In struct {
	Field  string
	Values []any
	Boost  float64
}

func (*In) Kind() Kind { return KindIn }
func (*In) isExpr()    {}

// IsNull matches documents without a value for Field, or with one when
// Negated is set.
type IsNull struct {
	Field   string
	Negated bool
}

func (*IsNull) Kind() Kind { return KindIsNull }
func (*IsNull) isExpr()    {}

// Keyword is a case-sensitive exact match against the untokenized field.
type Keyword struct {
	Field string
	Value string
	Boost float64
}

func (*Keyword) Kind() Kind { return KindKeyword }
func (*Keyword) isExpr()    {}

// Fulltext is a free-text query typed by an end user. Fields limits the
// query to the given logical fields; empty means the backend default.
type Fulltext struct {
	Fields []string
	Query  string
	Boost  float64
}

func (*Fulltext) Kind() Kind { return KindFulltext }
func (*Fulltext) isExpr()    {}

// MustNot negates its inner expression.
type MustNot struct {
	Expr Expr
}

func (*MustNot) Kind() Kind { return KindMustNot }
func (*MustNot) isExpr()    {}

// Operation combines children with AND or OR.
type Operation struct {
	Op       BoolOp
	Children []Expr
	Boost    float64
}

func (*Operation) Kind() Kind { return KindOperation }
func (*Operation) isExpr()    {}

// Day compares a date field at day granularity. Only the calendar date of
// Date is significant; the compiler anchors it in the configured time zone.
type Day struct {
	Field string
	Op    Operator
	Date  time.Time
}

func (*Day) Kind() Kind { return KindDay }
func (*Day) isExpr()    {}

// DayRange matches dates between From and To, both inclusive. A zero
// bound is open.
type DayRange struct {
	Field string
	From  time.Time
	To    time.Time
}

func (*DayRange) Kind() Kind { return KindDayRange }
func (*DayRange) isExpr()    {}

// FieldOf returns the logical field a leaf refers to, or "" for sentinels,
// Fulltext and combinators.
func FieldOf(e Expr) string {
	switch n := e.(type) {
	case *Value:
		return n.Field
	case *Range:
		return n.Field
	case *In:
		return n.Field
	case *IsNull:
		return n.Field
	case *Keyword:
		return n.Field
	case *Day:
		return n.Field
	case *DayRange:
		return n.Field
	}
	return ""
}

// BoostOf returns the boost carried by a node, or 0.
func BoostOf(e Expr) float64 {
	switch n := e.(type) {
	case *Value:
		return n.Boost
	case *Range:
		return n.Boost
	case *In:
		return n.Boost
	case *Keyword:
		return n.Boost
	case *Fulltext:
		return n.Boost
	case *Operation:
		return n.Boost
	}
	return 0
}

// withBoost returns a copy of e carrying boost, and false when the node
// type cannot carry one.
func withBoost(e Expr, boost float64) (Expr, bool) {
	switch n := e.(type) {
	case *Value:
		c := *n
		c.Boost = boost
		return &c, true
	case *Range:
		c := *n
		c.Boost = boost
		return &c, true
	case *In:
		c := *n
		c.Boost = boost
		return &c, true
	case *Keyword:
		c := *n
		c.Boost = boost
		return &c, true
	case *Fulltext:
		c := *n
		c.Boost = boost
		return &c, true
	case *Operation:
		c := *n
		c.Boost = boost
		return &c, true
	}
	return e, false
}

// Walk calls fn for e and every descendant, depth first. Returning false
// from fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *MustNot:
		Walk(n.Expr, fn)
	case *Operation:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	}
}
