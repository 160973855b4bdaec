package ledger

import (
	"sync"
	"time"

	"ledger/internal/core"
)

// ViewState holds the active list filter. Selecting one filter mode
// replaces the other, so at most one is ever in effect.
type ViewState struct {
	mu     sync.RWMutex
	filter Filter
}

func NewViewState() *ViewState {
	return &ViewState{filter: NoFilter{}}
}

func (v *ViewState) SelectDateRange(start, end time.Time) {
	v.set(DateRange{Start: start, End: end})
}

func (v *ViewState) SelectCategory(c core.Category) {
	v.set(CategoryFilter{Category: c})
}

func (v *ViewState) ClearFilter() {
	v.set(NoFilter{})
}

// Filter returns the active filter, never nil.
func (v *ViewState) Filter() Filter {
	if v == nil {
		return NoFilter{}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.filter == nil {
		return NoFilter{}
	}
	return v.filter
}

func (v *ViewState) set(f Filter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
}
