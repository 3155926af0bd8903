package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KhaledAleikish/andes/pkg/analysis"
	"github.com/KhaledAleikish/andes/pkg/casefile"
	"github.com/KhaledAleikish/andes/pkg/util"
)

var (
	tStop   float64
	tStep   float64
	plotVar []string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "andes",
		Short: "power system device model simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [case.yaml]",
		Short: "run operating point and time-domain simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runCase,
	}
	runCmd.Flags().Float64Var(&tStop, "tstop", 0, "override stop time")
	runCmd.Flags().Float64Var(&tStep, "tstep", 0, "override time step")
	runCmd.Flags().StringSliceVar(&plotVar, "plot", nil, "variables to plot (Model.idx.var)")

	checkCmd := &cobra.Command{
		Use:   "check [case.yaml]",
		Short: "validate a case without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  checkCase,
	}

	rootCmd.AddCommand(runCmd, checkCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCase(cmd *cobra.Command, args []string) error {
	c, err := casefile.Load(args[0])
	if err != nil {
		return err
	}
	sys, err := c.Build()
	if err != nil {
		return err
	}
	if err := sys.Setup(); err != nil {
		return err
	}

	stop := c.Tran.TStop
	step := c.Tran.TStep
	if tStop > 0 {
		stop = tStop
	}
	if tStep > 0 {
		step = tStep
	}
	if stop <= 0 || step <= 0 {
		return fmt.Errorf("case %q has no usable tran section; set --tstop and --tstep", c.Name)
	}

	tr := analysis.NewTransient(stop, step)
	tr.SetEvents(c.EventList())
	if err := tr.Setup(sys); err != nil {
		return err
	}
	if err := tr.Execute(); err != nil {
		return err
	}

	results := tr.GetResults()
	printFinal(results)

	for _, name := range plotVar {
		series, ok := results[name]
		if !ok {
			logrus.Warnf("no result series named %q", name)
			continue
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(series,
			asciigraph.Height(8), asciigraph.Width(60),
			asciigraph.Caption(name)))
	}
	return nil
}

func checkCase(cmd *cobra.Command, args []string) error {
	c, err := casefile.Load(args[0])
	if err != nil {
		return err
	}
	sys, err := c.Build()
	if err != nil {
		return err
	}
	if err := sys.Setup(); err != nil {
		return err
	}
	op := analysis.NewOP()
	if err := op.Setup(sys); err != nil {
		return err
	}
	if err := op.Execute(); err != nil {
		return err
	}
	fmt.Printf("case %q ok: %d devices, operating point in %d iterations\n",
		c.Name, len(c.Devices), op.Iterations)
	return nil
}

func printFinal(results map[string][]float64) {
	names := make([]string, 0, len(results))
	for name := range results {
		if name == "TIME" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	times := results["TIME"]
	fmt.Printf("\nSimulation Results (%d time points):\n", len(times))
	fmt.Println(strings.Repeat("-", 48))
	for _, name := range names {
		series := results[name]
		if len(series) == 0 {
			continue
		}
		fmt.Printf("%-28s %s\n", name, util.FormatValueFactor(series[len(series)-1], "pu"))
	}
}
