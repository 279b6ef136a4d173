package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/ldsc/simulate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.dedis.ch/onet/v3/log"
)

// RunSimulate writes a synthetic panel into args[0]
func RunSimulate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if debug, _ := flags.GetBool("debug"); debug {
		log.SetDebugVisible(2)
	}

	params := simulate.DefaultPanelParams()
	if fname, _ := flags.GetString("config"); fname != "" {
		if _, err := toml.DecodeFile(fname, &params); err != nil {
			return errors.Wrapf(err, "load panel parameters %s", fname)
		}
	}
	if flags.Changed("chromosomes") {
		params.NumChroms, _ = flags.GetInt("chromosomes")
	}
	if flags.Changed("snps") {
		params.SnpsPerChrom, _ = flags.GetInt("snps")
	}
	if flags.Changed("h2") {
		params.Heritability, _ = flags.GetFloat64("h2")
	}
	if flags.Changed("sample_size") {
		params.SampleSize, _ = flags.GetFloat64("sample_size")
	}
	if flags.Changed("seed") {
		params.Seed, _ = flags.GetUint64("seed")
	}

	panel, err := simulate.WritePanel(args[0], params)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sumstats\t%s\nref_panel\t%s\nmarkers\t%d\nexpected\t%d\n",
		panel.SumstatsFile, panel.RefDir, panel.NumMarkers, panel.NumExpected)
	return nil
}
