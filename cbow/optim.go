package cbow

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a AdamW
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAdamW)
	var m ParamMoments
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeParamMoments)
}

// ErrDiverged is returned when the loss or the gradient
// stops being finite.
var ErrDiverged = errors.New("training diverged: non-finite loss or gradient")

// Default AdamW hyper-parameters.
const (
	DefaultBeta1   = 0.9
	DefaultBeta2   = 0.999
	DefaultEpsilon = 1e-8
)

// AdamW implements Adam with decoupled weight decay and,
// optionally, the AMSGrad maximum of second moments.
//
// An AdamW can be serialized to pause and resume
// training.
// The parameters passed to Step must always be the same
// list in the same order.
type AdamW struct {
	Rate        float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	AMSGrad     bool

	// NumSteps counts the updates applied so far.
	NumSteps int

	// Moments holds per-parameter state.
	Moments []*ParamMoments
}

// NewAdamW creates an AdamW with the default betas.
func NewAdamW(rate, weightDecay float64, amsgrad bool) *AdamW {
	return &AdamW{
		Rate:        rate,
		Beta1:       DefaultBeta1,
		Beta2:       DefaultBeta2,
		Epsilon:     DefaultEpsilon,
		WeightDecay: weightDecay,
		AMSGrad:     amsgrad,
	}
}

// DeserializeAdamW deserializes an AdamW.
func DeserializeAdamW(d []byte) (a *AdamW, err error) {
	defer essentials.AddCtxTo("deserialize AdamW", &err)
	var res AdamW
	var amsgrad int
	var momentData serializer.Bytes
	err = serializer.DeserializeAny(d, &res.Rate, &res.Beta1, &res.Beta2, &res.Epsilon,
		&res.WeightDecay, &amsgrad, &res.NumSteps, &momentData)
	if err != nil {
		return nil, err
	}
	res.AMSGrad = amsgrad != 0
	objs, err := serializer.DeserializeSlice(momentData)
	if err != nil {
		return nil, err
	}
	for _, obj := range objs {
		if m, ok := obj.(*ParamMoments); ok {
			res.Moments = append(res.Moments, m)
		} else {
			return nil, fmt.Errorf("unexpected type: %T", obj)
		}
	}
	return &res, nil
}

// Step applies one update to the parameters using the
// gradient.
//
// The update happens in place on the parameter vectors,
// so the gradient is left untouched.
func (a *AdamW) Step(params []*anydiff.Var, g anydiff.Grad) {
	if a.Moments == nil {
		for _, p := range params {
			a.Moments = append(a.Moments, newMoments(p.Vector))
		}
	} else if len(a.Moments) != len(params) {
		panic("parameter count changed between steps")
	}

	a.NumSteps++
	correction1 := 1 - math.Pow(a.Beta1, float64(a.NumSteps))
	correction2 := 1 - math.Pow(a.Beta2, float64(a.NumSteps))
	stepSize := a.Rate / correction1

	for i, p := range params {
		grad, ok := g[p]
		if !ok {
			continue
		}
		m := a.Moments[i]
		c := p.Vector.Creator()

		p.Vector.Scale(c.MakeNumeric(1 - a.Rate*a.WeightDecay))

		scaledGrad := grad.Copy()
		scaledGrad.Scale(c.MakeNumeric(1 - a.Beta1))
		m.First.Scale(c.MakeNumeric(a.Beta1))
		m.First.Add(scaledGrad)

		sqGrad := grad.Copy()
		sqGrad.Mul(grad)
		sqGrad.Scale(c.MakeNumeric(1 - a.Beta2))
		m.Second.Scale(c.MakeNumeric(a.Beta2))
		m.Second.Add(sqGrad)

		second := m.Second
		if a.AMSGrad {
			anyvec.ElemMax(m.MaxSecond, m.Second)
			second = m.MaxSecond
		}

		// step = stepSize * m / (sqrt(v/correction2) + eps)
		denom := second.Copy()
		denom.Scale(c.MakeNumeric(1 / correction2))
		anyvec.Pow(denom, c.MakeNumeric(0.5))
		denom.AddScalar(c.MakeNumeric(a.Epsilon))
		anyvec.Pow(denom, c.MakeNumeric(-1))
		denom.Mul(m.First)
		denom.Scale(c.MakeNumeric(stepSize))
		p.Vector.Sub(denom)
	}
}

// SerializerType returns the unique ID used to serialize
// an AdamW with the serializer package.
func (a *AdamW) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed/cbow.AdamW"
}

// Serialize serializes the AdamW.
func (a *AdamW) Serialize() ([]byte, error) {
	var objs []serializer.Serializer
	for _, m := range a.Moments {
		objs = append(objs, m)
	}
	momentData, err := serializer.SerializeSlice(objs)
	if err != nil {
		return nil, err
	}
	var amsgrad int
	if a.AMSGrad {
		amsgrad = 1
	}
	return serializer.SerializeAny(a.Rate, a.Beta1, a.Beta2, a.Epsilon, a.WeightDecay,
		amsgrad, a.NumSteps, serializer.Bytes(momentData))
}

// ParamMoments stores the running averages for one
// parameter, using the parameter's numeric type.
type ParamMoments struct {
	First     anyvec.Vector
	Second    anyvec.Vector
	MaxSecond anyvec.Vector
}

func newMoments(param anyvec.Vector) *ParamMoments {
	c := param.Creator()
	return &ParamMoments{
		First:     c.MakeVector(param.Len()),
		Second:    c.MakeVector(param.Len()),
		MaxSecond: c.MakeVector(param.Len()),
	}
}

// DeserializeParamMoments deserializes ParamMoments.
func DeserializeParamMoments(d []byte) (*ParamMoments, error) {
	var first, second, maxSecond *anyvecsave.S
	if err := serializer.DeserializeAny(d, &first, &second, &maxSecond); err != nil {
		return nil, essentials.AddCtx("deserialize ParamMoments", err)
	}
	return &ParamMoments{
		First:     first.Vector,
		Second:    second.Vector,
		MaxSecond: maxSecond.Vector,
	}, nil
}

// SerializerType returns the unique ID used to serialize
// ParamMoments with the serializer package.
func (m *ParamMoments) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed/cbow.ParamMoments"
}

// Serialize serializes the ParamMoments.
func (m *ParamMoments) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: m.First},
		&anyvecsave.S{Vector: m.Second},
		&anyvecsave.S{Vector: m.MaxSecond},
	)
}

// ClipGrad scales the gradient in place so that its
// global L2 norm is at most maxNorm.
//
// It returns the norm before clipping.
func ClipGrad(g anydiff.Grad, maxNorm float64) float64 {
	var sumSquares float64
	for _, v := range g {
		sumSquares += numericFloat(v.Dot(v))
	}
	norm := math.Sqrt(sumSquares)
	if norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, v := range g {
			v.Scale(v.Creator().MakeNumeric(scale))
		}
	}
	return norm
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func scalarValue(v anyvec.Vector) float64 {
	return numericFloat(anyvec.Sum(v))
}
