package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func linearProblem(n int, a, b float64) *Problem {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 0.5 + float64(i)*0.25
		y[i] = a + b*x[i]
	}
	return &Problem{X: x, Y: y}
}

func TestConstantWeightsRecoverLine(t *testing.T) {
	opts := Options{MaxIter: 1, Tol: 1e-6, Weights: ConstantWeights}
	for _, s := range []Strategy{&FixedIterationIRWLS{Options: opts}, &ConvergenceCheckedIRWLS{Options: opts}} {
		fit, err := s.Fit(linearProblem(40, 2, 3))
		require.NoError(t, err, s.Name())
		assert.InDelta(t, 2, fit.Intercept, 1e-9, s.Name())
		assert.InDelta(t, 3, fit.Slope, 1e-9, s.Name())
		assert.Equal(t, 1, fit.Iterations, s.Name())
		require.Len(t, fit.Weights, 40)
		assert.Equal(t, 1.0, fit.Weights[7])
	}
}

func TestVarianceWeightsNoiseFree(t *testing.T) {
	p := linearProblem(100, 1, 0.5)
	fit, err := (&FixedIterationIRWLS{Options: Options{MaxIter: 5, Weights: VarianceWeights}}).Fit(p)
	require.NoError(t, err)

	assert.InDelta(t, 1, fit.Intercept, 1e-9)
	assert.InDelta(t, 0.5, fit.Slope, 1e-9)
	assert.Equal(t, Exhausted, fit.State)
	assert.False(t, fit.Converged)
	assert.Equal(t, 5, fit.Iterations)

	require.Len(t, fit.ResidualNorms, 6)
	for k := range fit.ResidualNorms {
		assert.Less(t, fit.ResidualNorms[k], 1e-9)
	}

	// w = yhat^(-1/2) / 2 with unit priors
	yhat := 1 + 0.5*p.X[3]
	assert.InDelta(t, 1/math.Sqrt(yhat)/2, fit.Weights[3], 1e-9)
}

func weightedResidualNorm(X *mat.Dense, y, beta *mat.VecDense, w []float64) float64 {
	var yhat mat.VecDense
	yhat.MulVec(X, beta)
	res := make([]float64, y.Len())
	for i := range res {
		res[i] = w[i] * (y.AtVec(i) - yhat.AtVec(i))
	}
	return floats.Norm(res, 2)
}

func TestWeightedResidualNormNonIncreasing(t *testing.T) {
	n := 400
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 0.5 + float64(i%100)*0.03
		y[i] = 1 + 0.5*x[i] + 0.3*math.Sin(1.7*float64(i))
	}
	r, err := newIRWLS(&Problem{X: x, Y: y}, Options{MaxIter: 5, Weights: VarianceWeights})
	require.NoError(t, err)
	require.NoError(t, r.initialize())
	require.Greater(t, r.fit.ResidualNorms[0], 0.1)

	for k := 1; k <= 5; k++ {
		prev := mat.VecDenseCopyOf(r.beta)
		require.NoError(t, r.step(k))
		w := r.fit.Weights
		before := weightedResidualNorm(r.X, r.y, prev, w)
		after := weightedResidualNorm(r.X, r.y, r.beta, w)
		assert.LessOrEqual(t, after, before+1e-9, "iteration %d", k)
	}
	fit := r.finish(Exhausted)
	assert.InDelta(t, 1, fit.Intercept, 0.1)
	assert.InDelta(t, 0.5, fit.Slope, 0.1)
}

func TestVarianceWeightsFormula(t *testing.T) {
	w, err := VarianceWeights([]float64{4, 1, 0.25}, []float64{1, 2, 0.5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 2}, w, 1e-12)

	_, err = VarianceWeights([]float64{1, 0, 2}, []float64{1, 1, 1})
	var ne *NumericalError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 1, ne.Index)

	_, err = VarianceWeights([]float64{1, math.NaN()}, []float64{1, 1})
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 1, ne.Index)
}

func TestNonPositivePredictionFails(t *testing.T) {
	p := &Problem{X: []float64{1, 2, 3}, Y: []float64{-1, -2, -3}}
	fit, err := (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	require.Nil(t, fit)
	var ne *NumericalError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 1, ne.Iteration)
	assert.Equal(t, 0, ne.Index)
}

func TestFixedIntercept(t *testing.T) {
	p := &Problem{X: []float64{1, 2, 3, 4}, Y: []float64{4, 8, 12, 16}, FixIntercept: true}
	for _, weights := range []WeightFunc{VarianceWeights, ConstantWeights} {
		fit, err := (&FixedIterationIRWLS{Options: Options{MaxIter: 3, Weights: weights}}).Fit(p)
		require.NoError(t, err)
		require.Len(t, fit.Coef, 1)
		assert.Equal(t, 0.0, fit.Intercept)
		assert.InDelta(t, 4, fit.Slope, 1e-9)
	}
}

func TestConvergenceChecked(t *testing.T) {
	n := 500
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 0.5 + float64(i%100)*0.05
		y[i] = 1.2 + 0.8*x[i] + 0.05*math.Sin(float64(i))
	}
	p := &Problem{X: x, Y: y}

	conv, err := (&ConvergenceCheckedIRWLS{Options: Options{MaxIter: 50, Tol: 1e-8}}).Fit(p)
	require.NoError(t, err)
	assert.True(t, conv.Converged)
	assert.Equal(t, Converged, conv.State)
	assert.Less(t, conv.Iterations, 50)
	assert.Len(t, conv.Changes, conv.Iterations)
	assert.Less(t, conv.Changes[len(conv.Changes)-1], 1e-8)
	assert.InDelta(t, 1.2, conv.Intercept, 0.05)
	assert.InDelta(t, 0.8, conv.Slope, 0.05)

	fixed, err := (&FixedIterationIRWLS{Options: Options{MaxIter: conv.Iterations}}).Fit(p)
	require.NoError(t, err)
	assert.InDeltaSlice(t, conv.Coef, fixed.Coef, 1e-12)
	assert.Equal(t, conv.Iterations, fixed.Iterations)
}

func TestConvergenceCheckedExhausted(t *testing.T) {
	p := linearProblem(20, 1, 1)
	p.Y[3] += 0.5
	fit, err := (&ConvergenceCheckedIRWLS{Options: Options{MaxIter: 1, Tol: 0}}).Fit(p)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, fit.State)
	assert.False(t, fit.Converged)
	assert.Equal(t, 1, fit.Iterations)
}

func TestZeroIterationsReturnsInitialEstimate(t *testing.T) {
	fit, err := (&FixedIterationIRWLS{Options: Options{MaxIter: 0}}).Fit(linearProblem(10, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, fit.Iterations)
	assert.InDelta(t, 3, fit.Intercept, 1e-9)
	assert.InDelta(t, 2, fit.Slope, 1e-9)
	assert.Len(t, fit.ResidualNorms, 1)
}

func TestRankDeficientDesign(t *testing.T) {
	p := &Problem{X: []float64{2, 2, 2, 2}, Y: []float64{3, 3, 3, 3}}
	fit, err := (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	require.NoError(t, err)
	// minimum-norm solution of b0 + 2 b1 = 3
	assert.InDelta(t, 0.6, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.2, fit.Slope, 1e-9)
}

func TestZeroDesignFails(t *testing.T) {
	p := &Problem{X: []float64{0, 0, 0}, Y: []float64{1, 1, 1}, FixIntercept: true}
	_, err := (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	var ne *NumericalError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, -1, ne.Index)
}

func TestPriorWeights(t *testing.T) {
	p := linearProblem(30, 1, 2)
	p.PriorWeights = make([]float64, 30)
	for i := range p.PriorWeights {
		p.PriorWeights[i] = 1 + float64(i%3)
	}
	fit, err := (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	require.NoError(t, err)
	assert.InDelta(t, 1, fit.Intercept, 1e-9)
	assert.InDelta(t, 2, fit.Slope, 1e-9)
	yhat := 1 + 2*p.X[2]
	assert.InDelta(t, 1/math.Sqrt(yhat)/2/3, fit.Weights[2], 1e-9)

	p.PriorWeights[4] = 0
	_, err = (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	var ne *NumericalError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 4, ne.Index)

	p.PriorWeights = p.PriorWeights[:10]
	_, err = (&FixedIterationIRWLS{Options: DefaultOptions()}).Fit(p)
	require.Error(t, err)
}

func TestProblemValidation(t *testing.T) {
	s := &FixedIterationIRWLS{Options: DefaultOptions()}
	_, err := s.Fit(&Problem{})
	require.Error(t, err)

	_, err = s.Fit(&Problem{X: []float64{1}, Y: []float64{1, 2}})
	require.Error(t, err)

	_, err = s.Fit(&Problem{X: []float64{1, math.Inf(1)}, Y: []float64{1, 2}})
	var ne *NumericalError
	require.ErrorAs(t, err, &ne)

	_, err = (&FixedIterationIRWLS{Options: Options{MaxIter: -1}}).Fit(linearProblem(5, 1, 1))
	require.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("fixed", DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &FixedIterationIRWLS{}, s)

	s, err = NewStrategy("", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, SolverFixed, s.Name())

	s, err = NewStrategy("Converge", DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &ConvergenceCheckedIRWLS{}, s)

	_, err = NewStrategy("newton", DefaultOptions())
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSummarize(t *testing.T) {
	median := 0.4549364231195724
	s, err := Summarize([]float64{median, median, median})
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumSnps)
	assert.InDelta(t, 1, s.LambdaGC, 1e-6)

	s, err = Summarize([]float64{1, 2, 6})
	require.NoError(t, err)
	assert.InDelta(t, 3, s.MeanChi2, 1e-12)
	assert.Equal(t, 6.0, s.MaxChi2)
	assert.InDelta(t, 2/median, s.LambdaGC, 1e-5)

	_, err = Summarize(nil)
	require.Error(t, err)
}
