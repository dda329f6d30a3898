package cbow

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// meanContext averages the embedding rows of each context.
//
// The result is a row-major batch of pooled vectors, one
// row of size dim per context.
func meanContext(table *anydiff.Var, dim int, contexts [][]int) anydiff.Res {
	c := table.Vector.Creator()
	rows := make([]anyvec.Vector, len(contexts))
	for i, ctx := range contexts {
		sum := c.MakeVector(dim)
		for _, id := range ctx {
			sum.Add(table.Vector.Slice(id*dim, (id+1)*dim))
		}
		sum.Scale(c.MakeNumeric(1 / float64(len(ctx))))
		rows[i] = sum
	}
	return &meanContextRes{
		Table:    table,
		Dim:      dim,
		Contexts: contexts,
		OutVec:   c.Concat(rows...),
	}
}

type meanContextRes struct {
	Table    *anydiff.Var
	Dim      int
	Contexts [][]int
	OutVec   anyvec.Vector
}

func (m *meanContextRes) Output() anyvec.Vector {
	return m.OutVec
}

func (m *meanContextRes) Vars() anydiff.VarSet {
	res := anydiff.VarSet{}
	res.Add(m.Table)
	return res
}

func (m *meanContextRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	v, ok := g[m.Table]
	if !ok {
		return
	}
	c := u.Creator()
	for i, ctx := range m.Contexts {
		part := u.Slice(i*m.Dim, (i+1)*m.Dim)
		part.Scale(c.MakeNumeric(1 / float64(len(ctx))))
		for _, id := range ctx {
			start := id * m.Dim
			row := v.Slice(start, start+m.Dim)
			row.Add(part)
			v.SetSlice(start, row)
		}
	}
}
