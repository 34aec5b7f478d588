package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryArchive is the default in-process archive. Records do not survive
// a restart.
type MemoryArchive struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

func (a *MemoryArchive) Init(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runs = make(map[string]RunRecord)
	return nil
}

func (a *MemoryArchive) SaveRun(_ context.Context, record RunRecord) error {
	if record.ID == "" {
		return errors.New("run id is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runs == nil {
		return errors.New("archive is not initialized")
	}
	record.BestParams = append([]float64(nil), record.BestParams...)
	a.runs[record.ID] = record
	return nil
}

func (a *MemoryArchive) GetRun(_ context.Context, id string) (RunRecord, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	record, ok := a.runs[id]
	if !ok {
		return RunRecord{}, false, nil
	}
	record.BestParams = append([]float64(nil), record.BestParams...)
	return record, true, nil
}

func (a *MemoryArchive) ListRuns(_ context.Context) ([]RunRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := make([]RunRecord, 0, len(a.runs))
	for _, record := range a.runs {
		record.BestParams = append([]float64(nil), record.BestParams...)
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].FinishedAt.Equal(records[j].FinishedAt) {
			return records[i].FinishedAt.After(records[j].FinishedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (a *MemoryArchive) BestRun(_ context.Context, problem string, dim int) (RunRecord, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var best RunRecord
	found := false
	for _, record := range a.runs {
		if record.Problem != problem || record.Dim != dim || record.Status != StatusCompleted {
			continue
		}
		if !found || record.BestCost < best.BestCost {
			best = record
			found = true
		}
	}
	if !found {
		return RunRecord{}, false, nil
	}
	best.BestParams = append([]float64(nil), best.BestParams...)
	return best, true, nil
}
