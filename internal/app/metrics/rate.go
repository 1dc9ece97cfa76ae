package metrics

import "sync"

// SuccessRates keeps per-model success and error tallies.
type SuccessRates struct {
	mu      sync.Mutex
	tallies map[string]*tally
}

type tally struct {
	successes uint64
	errors    uint64
}

func NewSuccessRates() *SuccessRates {
	return &SuccessRates{tallies: make(map[string]*tally)}
}

func (r *SuccessRates) get(model string) *tally {
	t, ok := r.tallies[model]
	if !ok {
		t = &tally{}
		r.tallies[model] = t
	}
	return t
}

// Success counts a success for model and returns successes/(successes+errors).
func (r *SuccessRates) Success(model string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.get(model)
	t.successes++
	return float64(t.successes) / float64(t.successes+t.errors)
}

// Failure counts an error for model.
func (r *SuccessRates) Failure(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(model).errors++
}

// Rate returns the current rate for model, and false if nothing was recorded.
func (r *SuccessRates) Rate(model string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tallies[model]
	if !ok || t.successes+t.errors == 0 {
		return 0, false
	}
	return float64(t.successes) / float64(t.successes+t.errors), true
}
