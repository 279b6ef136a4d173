package regression

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Summary describes the chi-square statistics that enter the regression
type Summary struct {
	NumSnps  int     `toml:"num_snps"`
	MeanChi2 float64 `toml:"mean_chi2"`
	MaxChi2  float64 `toml:"max_chi2"`
	LambdaGC float64 `toml:"lambda_gc"`
}

// Summarize reports mean and max chi-square and the genomic control factor
// median(chi2) / median(chi2 with 1 df).
func Summarize(chi2 []float64) (*Summary, error) {
	if len(chi2) == 0 {
		return nil, errors.New("summarize: no chi-square statistics")
	}
	mean, err := stats.Mean(chi2)
	if err != nil {
		return nil, errors.Wrap(err, "summarize")
	}
	median, err := stats.Median(chi2)
	if err != nil {
		return nil, errors.Wrap(err, "summarize")
	}
	max, err := stats.Max(chi2)
	if err != nil {
		return nil, errors.Wrap(err, "summarize")
	}
	return &Summary{
		NumSnps:  len(chi2),
		MeanChi2: mean,
		MaxChi2:  max,
		LambdaGC: median / distuv.ChiSquared{K: 1}.Quantile(0.5),
	}, nil
}
