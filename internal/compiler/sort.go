package compiler

import (
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// SortSpec requests ordering by a logical field, or by relevance.
type SortSpec struct {
	Field string
	Desc  bool

	// Relevance sorts by score; Field is ignored.
	Relevance bool

	// MissingFirst puts documents without a value first.
	MissingFirst bool

	// Filter restricts which nested objects contribute the sort value.
	Filter expr.Expr
}

// CompileSort translates sort specs. Text fields sort on their untokenized
// sibling; fields inside nested containers carry their nested path.
func (c *Compiler) CompileSort(specs []SortSpec, ctx *Context) ([]plan.Sort, error) {
	if ctx == nil {
		ctx = NewContext("", nil)
	}
	out := make([]plan.Sort, 0, len(specs))
	for _, s := range specs {
		if s.Relevance {
			out = append(out, plan.Sort{Score: true, Desc: s.Desc})
			continue
		}
		rf, err := c.resolver.Resolve(s.Field, ctx, true)
		if err != nil {
			return nil, err
		}
		if !rf.Field.Sortable || rf.Analyzed || rf.Field.Type == schema.TypeNested {
			return nil, invalid("field %q is not sortable", rf.Field.Path())
		}

		ps := plan.Sort{Field: rf.Path, Desc: s.Desc, Missing: "_last", NestedPath: rf.NestedPath}
		if s.MissingFirst {
			ps.Missing = "_first"
		}
		if s.Filter != nil {
			if rf.NestedPath == "" {
				return nil, invalid("sort filter on field %q outside a nested container", rf.Field.Path())
			}
			filter, err := c.Compile(expr.Optimize(s.Filter), ctx.sortFilter())
			if err != nil {
				return nil, err
			}
			ps.NestedFilter = filter
		}
		out = append(out, ps)
	}
	return out, nil
}
