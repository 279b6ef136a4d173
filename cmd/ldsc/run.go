package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/hhcho/ldsc/gwas"
	"github.com/raulk/go-watchdog"
	"github.com/spf13/cobra"
	"go.dedis.ch/onet/v3/log"
)

// RunLDSC builds the config from --config and the flags that were set, then
// runs the pipeline.
func RunLDSC(cmd *cobra.Command, args []string) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	if config.Debug {
		log.SetDebugVisible(2)
	}
	if err := os.MkdirAll(config.OutDir, 0755); err != nil {
		return err
	}
	logLvl := 1
	if config.Debug {
		logLvl = 2
	}
	stopLog, err := gwas.StartLogFile(config.OutFile(".log"), logLvl)
	if err != nil {
		return err
	}
	defer stopLog()

	if config.MemoryLimit > 0 {
		err, stopFn := watchdog.HeapDriven(config.MemoryLimit, 40, watchdog.NewAdaptivePolicy(0.5))
		if err != nil {
			return err
		}
		defer stopFn()
	}
	if config.LocalNumThreads > 0 {
		runtime.GOMAXPROCS(config.LocalNumThreads)
	}

	prot, err := gwas.InitializeProtocol(config)
	if err != nil {
		return err
	}
	res, err := prot.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "intercept\t%g\nslope\t%g\n", res.Intercept, res.Slope)
	return nil
}

func configFromFlags(cmd *cobra.Command) (*gwas.Config, error) {
	config := gwas.DefaultConfig()
	flags := cmd.Flags()

	if fname, _ := flags.GetString("config"); fname != "" {
		if err := gwas.LoadConfig(fname, config); err != nil {
			return nil, err
		}
	}

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	float := func(name string, dst *float64) {
		if flags.Changed(name) {
			*dst, _ = flags.GetFloat64(name)
		}
	}
	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	str("sumstats", &config.SumstatsFile)
	str("ref_panel", &config.RefPanelDir)
	float("N", &config.RefSampleSize)
	str("method", &config.Method)
	float("window_size", &config.WindowSize)
	str("out", &config.OutPrefix)
	str("output_dir", &config.OutDir)
	float("maf_lb", &config.MafLB)
	str("solver", &config.Solver)
	str("weights", &config.Weights)
	integer("max_iter", &config.MaxIter)
	float("tol", &config.Tol)
	boolean("fix_intercept", &config.FixIntercept)
	integer("threads", &config.LocalNumThreads)
	boolean("debug", &config.Debug)
	if flags.Changed("chromosomes") {
		config.Chromosomes, _ = flags.GetIntSlice("chromosomes")
	}
	if flags.Changed("memory_limit") {
		config.MemoryLimit, _ = flags.GetUint64("memory_limit")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
