package orchestrator

import (
	"time"
)

// Outcome is what happened to a work item during a cycle.
type Outcome string

const (
	OutcomeUploaded        Outcome = "uploaded"
	OutcomeAlreadyPresent  Outcome = "already_present"
	OutcomeNoMacros        Outcome = "no_macros"
	OutcomeOpenFailed      Outcome = "open_failed"
	OutcomeExecutionFailed Outcome = "execution_failed"
	OutcomeDownloadFailed  Outcome = "download_failed"
	OutcomeUploadFailed    Outcome = "upload_failed"
	OutcomeQuarantined     Outcome = "quarantined"
	OutcomePlanned         Outcome = "planned"
)

// ItemResult reports one work item.
type ItemResult struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`

	// Macros lists discovered macro names in execution order.
	Macros    []string `json:"macros,omitempty"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Error     string   `json:"error,omitempty"`
}

// CycleResult reports one poll cycle.
type CycleResult struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	WorkItems []string     `json:"work_items"`
	Items     []ItemResult `json:"items"`

	Downloads   int `json:"downloads"`
	Invocations int `json:"invocations"`
	Uploads     int `json:"uploads"`

	// Error is the cycle-level failure, if the cycle aborted.
	Error string `json:"error,omitempty"`

	// Errors holds every classified failure, item-level ones included.
	Errors []error `json:"-"`
}

// Item returns the result for name, or nil.
func (r *CycleResult) Item(name string) *ItemResult {
	for i := range r.Items {
		if r.Items[i].Name == name {
			return &r.Items[i]
		}
	}
	return nil
}

// Quarantined returns the names skipped because they are quarantined.
func (r *CycleResult) Quarantined() []string {
	var names []string
	for _, it := range r.Items {
		if it.Outcome == OutcomeQuarantined {
			names = append(names, it.Name)
		}
	}
	return names
}

// Uploaded returns the names uploaded during the cycle.
func (r *CycleResult) Uploaded() []string {
	var names []string
	for _, it := range r.Items {
		if it.Outcome == OutcomeUploaded {
			names = append(names, it.Name)
		}
	}
	return names
}

func (r *CycleResult) item(name string) *ItemResult {
	if it := r.Item(name); it != nil {
		return it
	}
	r.Items = append(r.Items, ItemResult{Name: name})
	return &r.Items[len(r.Items)-1]
}

func (r *CycleResult) fail(name string, outcome Outcome, err error) {
	it := r.item(name)
	it.Outcome = outcome
	if err != nil {
		it.Error = err.Error()
		r.Errors = append(r.Errors, err)
	}
}
