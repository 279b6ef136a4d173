package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ldsc",
		Short:   "LD score regression on GWAS summary statistics",
		Version: version,
		Long: `ldsc joins GWAS summary statistics with a reference LD panel, averages
per-marker LD within a genetic-distance window and regresses chi-square
statistics on the resulting LD scores.

Results are written to <output_dir>/<out>.txt, <out>_coef.txt and
<out>.result.toml.`,
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compute LD scores and fit the regression",
		Args:  cobra.NoArgs,
		RunE:  RunLDSC,
	}
	runCmd.Flags().String("config", "", "TOML config file; flags override its values")
	runCmd.Flags().StringP("sumstats", "s", "", "GWAS summary statistics (SNP, A1, A2, Z)")
	runCmd.Flags().StringP("ref_panel", "r", "", "Reference directory with *.snplist and <chr>.l2.ldscore.gz")
	runCmd.Flags().Float64P("N", "n", 61220, "Reference sample size used to rescale LD scores")
	runCmd.Flags().StringP("method", "m", "CM", "Window coordinate: CM|BP")
	runCmd.Flags().Float64P("window_size", "w", 0.01, "Window width in the method's units")
	runCmd.Flags().StringP("out", "o", "run", "Output file prefix")
	runCmd.Flags().String("output_dir", "results", "Output directory")
	runCmd.Flags().Float64("maf_lb", 0.01, "Drop markers with MAF at or below this bound")
	runCmd.Flags().IntSlice("chromosomes", nil, "Chromosomes to process (default 1-22)")
	runCmd.Flags().String("solver", "fixed", "Regression solver: fixed|converge")
	runCmd.Flags().String("weights", "variance", "Regression weights: variance|constant")
	runCmd.Flags().Int("max_iter", 2, "Maximum IRWLS iterations")
	runCmd.Flags().Float64("tol", 1e-6, "Convergence tolerance for the converge solver")
	runCmd.Flags().Bool("fix_intercept", false, "Constrain the regression intercept to zero")
	runCmd.Flags().Int("threads", 0, "Worker goroutines (default: number of CPUs)")
	runCmd.Flags().Uint64("memory_limit", 0, "Heap limit in bytes for the memory watchdog (0 disables)")
	runCmd.Flags().Bool("debug", false, "Verbose logging")

	simulateCmd := &cobra.Command{
		Use:   "simulate <dir>",
		Short: "Write a synthetic reference panel and matching summary statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSimulate,
	}
	simulateCmd.Flags().String("config", "", "TOML file with panel parameters")
	simulateCmd.Flags().Int("chromosomes", 22, "Number of chromosomes")
	simulateCmd.Flags().Int("snps", 2000, "Markers per chromosome")
	simulateCmd.Flags().Float64("h2", 0.5, "Planted heritability")
	simulateCmd.Flags().Float64("sample_size", 61220, "GWAS sample size")
	simulateCmd.Flags().Uint64("seed", 1, "Random seed")
	simulateCmd.Flags().Bool("debug", false, "Verbose logging")

	rootCmd.AddCommand(runCmd, simulateCmd)
	return rootCmd
}

func main() {
	if err := NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
