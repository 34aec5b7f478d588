package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwbudde/evostrat/internal/bench"
)

const (
	optimizerES     = "es"
	optimizerMayfly = "mayfly"
)

// normalizeJobConfig fills in defaults and rejects configs the worker could
// not run, so bad submissions fail at the API boundary instead of mid-job.
// The problem name is resolved against the registry and Dim is replaced by
// the problem's actual dimensionality.
func normalizeJobConfig(config *JobConfig) error {
	if config.Problem == "" {
		return fmt.Errorf("problem is required")
	}

	if config.Optimizer == "" {
		config.Optimizer = optimizerES
	}
	if config.Iters <= 0 {
		config.Iters = 500
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}

	switch config.Optimizer {
	case optimizerES:
		if config.Mu <= 0 {
			config.Mu = 20
		}
		if config.Lambda <= 0 {
			config.Lambda = 7 * config.Mu
		}
		if config.Selection == "" {
			config.Selection = "plus"
		}
		if config.Selection != "plus" && config.Selection != "comma" {
			return fmt.Errorf("unknown selection: %s", config.Selection)
		}
		if config.Rho > config.Mu {
			return fmt.Errorf("rho (%d) cannot exceed mu (%d)", config.Rho, config.Mu)
		}
		if config.Selection == "comma" && config.Mu >= config.Lambda {
			return fmt.Errorf("comma selection requires mu (%d) < lambda (%d)", config.Mu, config.Lambda)
		}
	case optimizerMayfly:
		if config.PopSize <= 0 {
			config.PopSize = 30
		}
	default:
		return fmt.Errorf("unknown optimizer: %s", config.Optimizer)
	}

	problem, err := bench.New(config.Problem, config.Dim)
	if err != nil {
		return err
	}
	config.Dim = problem.Dim()

	return nil
}

// evalsPerSecond computes objective-evaluation throughput.
func evalsPerSecond(evaluations int, elapsed time.Duration) float64 {
	if elapsed.Seconds() <= 0 {
		return 0
	}
	return float64(evaluations) / elapsed.Seconds()
}

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
