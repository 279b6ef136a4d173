package regression

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type State int

const (
	Uninitialized State = iota
	Initialized
	Iterating
	Converged
	Exhausted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// WeightFunc maps the current prediction and the fixed prior weights to the
// regression weights of the next weighted solve.
type WeightFunc func(yhat, prior []float64) ([]float64, error)

// VarianceWeights is w = yhat^(-1/2) / (2 * prior). Squared z-scores have
// variance proportional to the square of their predicted mean.
func VarianceWeights(yhat, prior []float64) ([]float64, error) {
	w := make([]float64, len(yhat))
	for i := range yhat {
		if !(yhat[i] > 0) {
			return nil, &NumericalError{Index: i, Rows: len(yhat), Value: yhat[i], Msg: "non-positive predicted value"}
		}
		w[i] = 1 / math.Sqrt(yhat[i]) / 2 / prior[i]
	}
	return w, nil
}

// ConstantWeights ignores the prediction and weights each row by 1 / prior
func ConstantWeights(yhat, prior []float64) ([]float64, error) {
	w := make([]float64, len(yhat))
	for i := range w {
		w[i] = 1 / prior[i]
	}
	return w, nil
}

type Problem struct {
	X            []float64 // scaled LD score
	Y            []float64 // squared z-score
	PriorWeights []float64 // nil means all ones
	FixIntercept bool      // drop the intercept column and fit through the origin
}

func (p *Problem) design() (*mat.Dense, *mat.VecDense, []float64, error) {
	n := len(p.Y)
	if n == 0 {
		return nil, nil, nil, errors.New("regression: no observations")
	}
	if len(p.X) != n {
		return nil, nil, nil, errors.Errorf("regression: %d predictors but %d responses", len(p.X), n)
	}
	prior := p.PriorWeights
	if prior == nil {
		prior = make([]float64, n)
		for i := range prior {
			prior[i] = 1
		}
	} else if len(prior) != n {
		return nil, nil, nil, errors.Errorf("regression: %d prior weights but %d responses", len(prior), n)
	}
	for i := range prior {
		if !(prior[i] > 0) || math.IsInf(prior[i], 0) {
			return nil, nil, nil, &NumericalError{Index: i, Rows: n, Value: prior[i], Msg: "prior weight must be positive"}
		}
	}
	for i := 0; i < n; i++ {
		if !isFinite(p.X[i]) || !isFinite(p.Y[i]) {
			return nil, nil, nil, &NumericalError{Index: i, Rows: n, Value: p.X[i], Msg: "non-finite observation"}
		}
	}

	cols := 2
	if p.FixIntercept {
		cols = 1
	}
	X := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		if p.FixIntercept {
			X.Set(i, 0, p.X[i])
		} else {
			X.Set(i, 0, 1)
			X.Set(i, 1, p.X[i])
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), p.Y...))
	return X, y, prior, nil
}

type Options struct {
	MaxIter int
	Tol     float64
	Weights WeightFunc
}

func DefaultOptions() Options {
	return Options{
		MaxIter: 2,
		Tol:     1e-6,
		Weights: VarianceWeights,
	}
}

func (o *Options) validate() error {
	if o.MaxIter < 0 {
		return errors.Errorf("regression: max_iter must be non-negative, got %d", o.MaxIter)
	}
	if math.IsNaN(o.Tol) || o.Tol < 0 {
		return errors.Errorf("regression: tol must be non-negative, got %v", o.Tol)
	}
	if o.Weights == nil {
		o.Weights = VarianceWeights
	}
	return nil
}

type Fit struct {
	Coef       []float64
	Intercept  float64
	Slope      float64
	Weights    []float64
	Residuals  []float64
	Iterations int
	Converged  bool
	State      State

	// ResidualNorms[k] is ||y - X beta_k||; index 0 is the initial estimate.
	ResidualNorms []float64
	// Changes[k-1] is ||r_k - r_(k-1)||
	Changes []float64
}

type Strategy interface {
	Name() string
	Fit(p *Problem) (*Fit, error)
}

const (
	SolverFixed    = "fixed"
	SolverConverge = "converge"
)

func NewStrategy(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(name) {
	case SolverFixed, "":
		return &FixedIterationIRWLS{Options: opts}, nil
	case SolverConverge:
		return &ConvergenceCheckedIRWLS{Options: opts}, nil
	}
	return nil, errors.Errorf("unknown solver %q, expected %s or %s", name, SolverFixed, SolverConverge)
}

// FixedIterationIRWLS applies exactly MaxIter weight updates.
type FixedIterationIRWLS struct {
	Options
}

func (s *FixedIterationIRWLS) Name() string {
	return SolverFixed
}

func (s *FixedIterationIRWLS) Fit(p *Problem) (*Fit, error) {
	opts := s.Options
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r, err := newIRWLS(p, opts)
	if err != nil {
		return nil, err
	}
	if err := r.initialize(); err != nil {
		return nil, err
	}
	for k := 1; k <= opts.MaxIter; k++ {
		if err := r.step(k); err != nil {
			return nil, err
		}
	}
	return r.finish(Exhausted), nil
}

// ConvergenceCheckedIRWLS stops once successive residual vectors differ by less
// than Tol in Euclidean norm, or after MaxIter updates.
type ConvergenceCheckedIRWLS struct {
	Options
}

func (s *ConvergenceCheckedIRWLS) Name() string {
	return SolverConverge
}

func (s *ConvergenceCheckedIRWLS) Fit(p *Problem) (*Fit, error) {
	opts := s.Options
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r, err := newIRWLS(p, opts)
	if err != nil {
		return nil, err
	}
	if err := r.initialize(); err != nil {
		return nil, err
	}
	for k := 1; k <= opts.MaxIter; k++ {
		if err := r.step(k); err != nil {
			return nil, err
		}
		if r.fit.Changes[k-1] < opts.Tol {
			log.Lvl2("IRWLS converged after", k, "iterations")
			return r.finish(Converged), nil
		}
	}
	return r.finish(Exhausted), nil
}

// irwls holds the working state of one fit. It is never shared.
type irwls struct {
	X     *mat.Dense
	y     *mat.VecDense
	prior []float64
	opts  Options

	beta  *mat.VecDense
	resid []float64
	fit   *Fit
}

func newIRWLS(p *Problem, opts Options) (*irwls, error) {
	X, y, prior, err := p.design()
	if err != nil {
		return nil, err
	}
	return &irwls{
		X:     X,
		y:     y,
		prior: prior,
		opts:  opts,
		fit:   &Fit{State: Uninitialized},
	}, nil
}

// initialize sets beta to the unweighted minimum-norm least-squares solution
func (r *irwls) initialize() error {
	beta, _, err := lstsq(r.X, r.y)
	if err != nil {
		return err
	}
	r.beta = beta
	r.resid = r.residuals()
	r.fit.ResidualNorms = append(r.fit.ResidualNorms, floats.Norm(r.resid, 2))
	r.fit.State = Initialized
	return nil
}

func (r *irwls) step(k int) error {
	r.fit.State = Iterating

	var yhat mat.VecDense
	yhat.MulVec(r.X, r.beta)
	w, err := r.opts.Weights(yhat.RawVector().Data, r.prior)
	if err != nil {
		if ne, ok := err.(*NumericalError); ok {
			ne.Iteration = k
		}
		return err
	}

	Xw, yw := scaleRows(r.X, r.y, w)
	beta, _, err := lstsq(Xw, yw)
	if err != nil {
		if ne, ok := err.(*NumericalError); ok {
			ne.Iteration = k
		}
		return err
	}
	r.beta = beta
	r.fit.Weights = w
	r.fit.Iterations = k

	resid := r.residuals()
	diff := make([]float64, len(resid))
	floats.SubTo(diff, resid, r.resid)
	r.fit.Changes = append(r.fit.Changes, floats.Norm(diff, 2))
	r.fit.ResidualNorms = append(r.fit.ResidualNorms, floats.Norm(resid, 2))
	r.resid = resid
	return nil
}

func (r *irwls) residuals() []float64 {
	var yhat mat.VecDense
	yhat.MulVec(r.X, r.beta)
	res := make([]float64, r.y.Len())
	floats.SubTo(res, r.y.RawVector().Data, yhat.RawVector().Data)
	return res
}

func (r *irwls) finish(state State) *Fit {
	fit := r.fit
	fit.State = state
	fit.Converged = state == Converged
	fit.Residuals = r.resid
	fit.Coef = make([]float64, r.beta.Len())
	for i := range fit.Coef {
		fit.Coef[i] = r.beta.AtVec(i)
	}
	if len(fit.Coef) == 1 {
		fit.Intercept = 0
		fit.Slope = fit.Coef[0]
	} else {
		fit.Intercept = fit.Coef[0]
		fit.Slope = fit.Coef[1]
	}
	return fit
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
