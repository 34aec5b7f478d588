package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		// List all jobs
		url := fmt.Sprintf("%s/api/v1/jobs", serverURL)
		return listJobs(url)
	}

	// Get specific job status
	jobID := args[0]
	url := fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID)
	return getJobStatus(url, jobID)
}

func listJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		config, _ := job["config"].(map[string]interface{})
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		fmt.Printf("  Problem: %v (dim %v)\n", config["problem"], config["dim"])
		fmt.Printf("  Optimizer: %v\n", config["optimizer"])
		if cost, ok := job["bestCost"].(float64); ok && cost != 0 {
			fmt.Printf("  Cost: %v -> %.6f\n", job["initialCost"], cost)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Display status
	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Problem: %v\n", config["problem"])
		fmt.Printf("  Dimension: %v\n", config["dim"])
		fmt.Printf("  Optimizer: %v\n", config["optimizer"])
		fmt.Printf("  Iterations: %v\n", config["iters"])
		if config["optimizer"] == "es" {
			fmt.Printf("  Mu/Lambda: %v/%v (%v selection)\n", config["mu"], config["lambda"], config["selection"])
		}
		fmt.Printf("  Seed: %v\n", config["seed"])
		fmt.Println()
	}

	fmt.Println("Progress:")
	if iterations, ok := status["iterations"].(float64); ok {
		fmt.Printf("  Iterations: %.0f\n", iterations)
	}
	if evaluations, ok := status["evaluations"].(float64); ok {
		fmt.Printf("  Evaluations: %.0f\n", evaluations)
	}

	initialCost, hasInitial := status["initialCost"].(float64)
	if hasInitial && initialCost != 0 {
		fmt.Printf("  Initial Cost: %.6f\n", initialCost)
	}
	if bestCost, ok := status["bestCost"].(float64); ok && bestCost != 0 {
		fmt.Printf("  Best Cost: %.6f\n", bestCost)
		if hasInitial && initialCost != 0 {
			improvement := initialCost - bestCost
			improvementPct := (improvement / initialCost) * 100
			fmt.Printf("  Improvement: %.6f (%.1f%%)\n", improvement, improvementPct)
		}
	}

	if secs, ok := status["elapsed"].(float64); ok {
		elapsed := time.Duration(secs * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}

	if eps, ok := status["eps"].(float64); ok && eps > 0 {
		fmt.Printf("  Throughput: %.0f evals/sec\n", eps)
	}

	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}
