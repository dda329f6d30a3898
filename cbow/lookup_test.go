package cbow

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestMeanContextOutput(t *testing.T) {
	table := anydiff.NewVar(anyvec32.MakeVectorData([]float32{
		1, 2,
		3, 4,
		5, 6,
	}))
	res := meanContext(table, 2, [][]int{{0, 2}, {1, 1}})
	expected := []float32{3, 4, 3, 4}
	actual := res.Output().Data().([]float32)
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestMeanContextProp(t *testing.T) {
	vec := anyvec32.MakeVector(6 * 4)
	anyvec.Rand(vec, anyvec.Normal, nil)
	table := anydiff.NewVar(vec)
	contexts := [][]int{{0, 2, 2, 5}, {1, 3, 4, 0}}
	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return meanContext(table, 4, contexts)
		},
		V:     []*anydiff.Var{table},
		Delta: 1e-2,
		Prec:  1e-3,
	}
	checker.FullCheck(t)
}
