package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/evostrat/internal/bench"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List available benchmark problems",
	Long:  `Lists every registered benchmark problem with its default dimensionality, bounds and known optimum.`,
	RunE:  runProblems,
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}

func runProblems(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEFAULT DIM\tBOUNDS\tOPTIMUM")
	fmt.Fprintln(w, "----\t-----------\t------\t-------")

	for _, name := range bench.Names() {
		problem, err := bench.New(name, 0)
		if err != nil {
			return fmt.Errorf("failed to construct problem %q: %w", name, err)
		}
		lower, upper := problem.Bounds()
		fmt.Fprintf(w, "%s\t%d\t[%g, %g]\t%g\n",
			problem.Name(), problem.Dim(), lower[0], upper[0], problem.Optimum())
	}

	return w.Flush()
}
