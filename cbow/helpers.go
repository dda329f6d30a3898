package cbow

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// vectorFloats copies a vector's contents into a float64
// slice.
func vectorFloats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return append([]float64{}, data...)
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}

// vectorFloat32s copies a vector's contents into a
// float32 slice.
func vectorFloat32s(v anyvec.Vector) []float32 {
	switch data := v.Data().(type) {
	case []float32:
		return append([]float32{}, data...)
	case []float64:
		res := make([]float32, len(data))
		for i, x := range data {
			res[i] = float32(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}
