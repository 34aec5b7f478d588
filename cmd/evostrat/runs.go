package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/evostrat/internal/archive"
)

var runsServerURL string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived optimization runs",
	Long:  `Queries the server's run archive and lists finished runs, newest first.`,
	RunE:  runListRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsServerURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/runs", runsServerURL)
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var records []archive.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No archived runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPROBLEM\tDIM\tOPTIMIZER\tSTATUS\tBEST COST\tITERATIONS\tFINISHED")
	fmt.Fprintln(w, "------\t-------\t---\t---------\t------\t---------\t----------\t--------")

	for _, record := range records {
		displayID := record.ID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%.6f\t%d\t%s (%s)\n",
			displayID,
			record.Problem,
			record.Dim,
			record.Optimizer,
			record.Status,
			record.BestCost,
			record.Iterations,
			record.FinishedAt.Format(time.DateTime),
			humanize.Time(record.FinishedAt),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(records))
	return nil
}
