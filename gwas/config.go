package gwas

import (
	"math"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/ldsc/ldscore"
	"github.com/pkg/errors"
)

const NumAutosomes = 22

type Config struct {
	SumstatsFile  string  `toml:"sumstats"`
	RefPanelDir   string  `toml:"ref_panel"`
	RefSampleSize float64 `toml:"N"`

	Method     string  `toml:"method"`
	WindowSize float64 `toml:"window_size"`

	Chromosomes []int   `toml:"chromosomes"`
	MafLB       float64 `toml:"maf_lb"`

	Solver       string  `toml:"solver"`
	Weights      string  `toml:"weights"`
	MaxIter      int     `toml:"max_iter"`
	Tol          float64 `toml:"tol"`
	FixIntercept bool    `toml:"fix_intercept"`

	OutPrefix string `toml:"out"`
	OutDir    string `toml:"output_dir"`

	LocalNumThreads int    `toml:"local_num_threads"`
	MemoryLimit     uint64 `toml:"memory_limit"`

	Debug bool `toml:"debug"`
}

func DefaultConfig() *Config {
	chroms := make([]int, NumAutosomes)
	for i := range chroms {
		chroms[i] = i + 1
	}
	return &Config{
		RefSampleSize: 61220,
		Method:        "CM",
		WindowSize:    1e-2,
		Chromosomes:   chroms,
		MafLB:         0.01,
		Solver:        "fixed",
		Weights:       "variance",
		MaxIter:       2,
		Tol:           1e-6,
		OutPrefix:     "run",
		OutDir:        "results",
	}
}

// LoadConfig overlays the values found in a toml file onto config
func LoadConfig(filename string, config *Config) error {
	if _, err := toml.DecodeFile(filename, config); err != nil {
		return errors.Wrapf(err, "load config %s", filename)
	}
	return nil
}

func (config *Config) Validate() error {
	if config.SumstatsFile == "" {
		return errors.New("config: sumstats file is required")
	}
	if config.RefPanelDir == "" {
		return errors.New("config: reference panel directory is required")
	}
	if !(config.RefSampleSize > 0) || math.IsInf(config.RefSampleSize, 0) {
		return errors.Errorf("config: N must be positive, got %v", config.RefSampleSize)
	}
	if _, err := ldscore.ParseMethod(config.Method); err != nil {
		return errors.Wrap(err, "config")
	}
	if math.IsNaN(config.WindowSize) || config.WindowSize < 0 {
		return errors.Errorf("config: window_size must be non-negative, got %v", config.WindowSize)
	}
	if len(config.Chromosomes) == 0 {
		return errors.New("config: no chromosomes selected")
	}
	seen := make(map[int]bool)
	for _, c := range config.Chromosomes {
		if c < 1 || c > NumAutosomes {
			return errors.Errorf("config: chromosome %d outside 1..%d", c, NumAutosomes)
		}
		if seen[c] {
			return errors.Errorf("config: chromosome %d listed twice", c)
		}
		seen[c] = true
	}
	if config.MafLB < 0 || config.MafLB >= 0.5 {
		return errors.Errorf("config: maf_lb must be within [0, 0.5), got %v", config.MafLB)
	}
	if config.Weights != "variance" && config.Weights != "constant" {
		return errors.Errorf("config: weights must be variance or constant, got %q", config.Weights)
	}
	if config.MaxIter < 0 {
		return errors.Errorf("config: max_iter must be non-negative, got %d", config.MaxIter)
	}
	if math.IsNaN(config.Tol) || config.Tol < 0 {
		return errors.Errorf("config: tol must be non-negative, got %v", config.Tol)
	}
	if config.OutPrefix == "" {
		return errors.New("config: output prefix is required")
	}
	return nil
}

func (config *Config) OutFile(suffix string) string {
	return path.Join(config.OutDir, config.OutPrefix+suffix)
}
