package gwas

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/hhcho/ldsc/ldscore"
	"github.com/hhcho/ldsc/regression"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// Result is written to <out>.result.toml at the end of a run
type Result struct {
	Solver       string  `toml:"solver"`
	Method       string  `toml:"method"`
	WindowSize   float64 `toml:"window_size"`
	RefN         float64 `toml:"N"`
	FixIntercept bool    `toml:"fix_intercept"`

	Intercept  float64 `toml:"intercept"`
	Slope      float64 `toml:"slope"`
	Iterations int     `toml:"iterations"`
	Converged  bool    `toml:"converged"`
	State      string  `toml:"state"`

	NumSnps        int     `toml:"num_snps"`
	NumChroms      int     `toml:"num_chroms"`
	ElapsedSeconds float64 `toml:"elapsed_seconds"`

	LDScoreFile string `toml:"ldscore_file"`
	CoefFile    string `toml:"coef_file"`

	Chi2 regression.Summary `toml:"chi2"`
	Join JoinStats          `toml:"join"`
}

type Protocol struct {
	config       *Config
	window       ldscore.Window
	filterParams *FilterParams
	strategy     regression.Strategy

	stats  JoinStats
	merged map[string]MergedMarker
	tables []ldscore.ChromTable
	table  *ldscore.Table
	fit    *regression.Fit
}

func InitializeProtocol(config *Config) (*Protocol, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	method, err := ldscore.ParseMethod(config.Method)
	if err != nil {
		return nil, err
	}

	opts := regression.Options{
		MaxIter: config.MaxIter,
		Tol:     config.Tol,
		Weights: regression.VarianceWeights,
	}
	if config.Weights == "constant" {
		opts.Weights = regression.ConstantWeights
	}
	strategy, err := regression.NewStrategy(config.Solver, opts)
	if err != nil {
		return nil, err
	}

	log.LLvl1(time.Now().Format(time.StampMilli), fmt.Sprintf("LD score regression: method %s, window %v, N %v, solver %s, %d iterations",
		method, config.WindowSize, config.RefSampleSize, strategy.Name(), config.MaxIter))

	return &Protocol{
		config:       config,
		window:       ldscore.Window{Method: method, Size: config.WindowSize},
		filterParams: InitFilterParams(config),
		strategy:     strategy,
	}, nil
}

// Run executes the whole pipeline: read and merge the summary statistics,
// join the reference LD files, aggregate window LD scores, write the tables
// and fit the regression.
func (g *Protocol) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := g.LoadSumstats(); err != nil {
		return nil, err
	}
	if err := g.JoinReference(ctx); err != nil {
		return nil, err
	}
	if err := g.ComputeLDScores(ctx); err != nil {
		return nil, err
	}
	if err := g.WriteTables(); err != nil {
		return nil, err
	}
	summary, err := regression.Summarize(g.table.ChiSquared())
	if err != nil {
		return nil, err
	}
	log.LLvl1(time.Now().Format(time.StampMilli), fmt.Sprintf("Mean chi^2 %.4f, lambda GC %.4f", summary.MeanChi2, summary.LambdaGC))

	if err := g.Regress(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	log.LLvl1(time.Now().Format(time.StampMilli), "Intercept:", g.fit.Intercept)
	log.LLvl1(time.Now().Format(time.StampMilli), "Slope:", g.fit.Slope)
	log.LLvl1(time.Now().Format(time.StampMilli), "Finished in", elapsed)

	res := &Result{
		Solver:         g.strategy.Name(),
		Method:         string(g.window.Method),
		WindowSize:     g.window.Size,
		RefN:           g.config.RefSampleSize,
		FixIntercept:   g.config.FixIntercept,
		Intercept:      g.fit.Intercept,
		Slope:          g.fit.Slope,
		Iterations:     g.fit.Iterations,
		Converged:      g.fit.Converged,
		State:          g.fit.State.String(),
		NumSnps:        g.table.Len(),
		NumChroms:      g.table.NumChroms(),
		ElapsedSeconds: elapsed.Seconds(),
		LDScoreFile:    g.config.OutFile(".txt"),
		CoefFile:       g.config.OutFile("_coef.txt"),
		Chi2:           *summary,
		Join:           g.stats,
	}
	if err := WriteResult(g.config.OutFile(".result.toml"), res); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadSumstats reads the summary statistics and the reference marker list and
// merges them on SNP and allele pair.
func (g *Protocol) LoadSumstats() error {
	sumstats, err := ReadSumstats(g.config.SumstatsFile, &g.stats)
	if err != nil {
		return err
	}
	snplist, err := FindMarkerList(g.config.RefPanelDir)
	if err != nil {
		return err
	}
	markerList, err := ReadMarkerList(snplist, &g.stats)
	if err != nil {
		return err
	}
	g.merged, err = MergeSumstats(sumstats, markerList, &g.stats)
	return err
}

// JoinReference joins the merged SNPs with the per-chromosome LD files, applies
// the MAF filter and splits the survivors into position-sorted tables.
func (g *Protocol) JoinReference(ctx context.Context) error {
	if g.merged == nil {
		return errors.New("join reference: summary statistics not loaded")
	}
	nproc := Min(g.GetLocalThreads(), len(g.config.Chromosomes))
	markers, err := JoinLDFiles(ctx, g.config.RefPanelDir, g.config.Chromosomes, g.merged, nproc, &g.stats)
	if err != nil {
		return err
	}
	markers, err = FilterMaf(markers, g.filterParams, &g.stats)
	if err != nil {
		return err
	}
	g.tables = GroupByChromosome(markers, g.window.Method)
	return nil
}

// ComputeLDScores aggregates window means per chromosome and rescales the
// assembled table by N / total marker count.
func (g *Protocol) ComputeLDScores(ctx context.Context) error {
	if g.tables == nil {
		return errors.New("compute ld scores: reference not joined")
	}
	table, err := ldscore.Aggregate(ctx, g.tables, g.window, g.GetLocalThreads())
	if err != nil {
		return err
	}
	if err := table.Scale(g.config.RefSampleSize); err != nil {
		return err
	}
	g.table = table
	return nil
}

func (g *Protocol) WriteTables() error {
	if err := os.MkdirAll(g.config.OutDir, 0755); err != nil {
		return &DataError{Stage: StageOutput, Path: g.config.OutDir, Msg: "cannot create output directory", Err: err}
	}
	if err := WriteLDScoreTable(g.config.OutFile(".txt"), g.table); err != nil {
		return err
	}
	return WriteCoefTable(g.config.OutFile("_coef.txt"), g.table)
}

// Regress fits Z^2 on the scaled LD score
func (g *Protocol) Regress() error {
	if g.table == nil {
		return errors.New("regress: ld scores not computed")
	}
	fit, err := g.strategy.Fit(&regression.Problem{
		X:            g.table.X(),
		Y:            g.table.ChiSquared(),
		FixIntercept: g.config.FixIntercept,
	})
	if err != nil {
		return err
	}
	g.fit = fit
	return nil
}

func (g *Protocol) GetConfig() *Config {
	return g.config
}
func (g *Protocol) GetWindow() ldscore.Window {
	return g.window
}
func (g *Protocol) GetStrategy() regression.Strategy {
	return g.strategy
}
func (g *Protocol) GetJoinStats() JoinStats {
	return g.stats
}
func (g *Protocol) GetTables() []ldscore.ChromTable {
	return g.tables
}
func (g *Protocol) GetTable() *ldscore.Table {
	return g.table
}
func (g *Protocol) GetFit() *regression.Fit {
	return g.fit
}
func (g *Protocol) GetLocalThreads() int {
	if g.config.LocalNumThreads <= 0 {
		return runtime.NumCPU()
	}
	return g.config.LocalNumThreads
}
