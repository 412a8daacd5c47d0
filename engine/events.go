package engine

import (
	"errors"
	"slices"

	"cart-service/models"
)

var ErrUnknownEvent = errors.New("unknown view event")

type Options struct {
	// ResetPageOnQueryChange sends the user back to page 1 when search or sort changes.
	ResetPageOnQueryChange bool
}

// Apply 应用一次界面交互事件，返回新的状态
// totalPages 用于翻页时的边界限制
func Apply(state models.ViewState, event models.ViewEvent, totalPages int, opts Options) (models.ViewState, error) {
	next := state
	next.Expanded = slices.Clone(state.Expanded)
	last := max(1, totalPages)

	switch event.Type {
	case models.EventSearch:
		next.Search = event.Value
		resetPage(&next, opts)
	case models.EventSortField:
		if f := models.SortField(event.Value); f.Valid() {
			next.SortField = f
			resetPage(&next, opts)
		}
	case models.EventSortOrder:
		if o := models.SortOrder(event.Value); o.Valid() {
			next.SortOrder = o
			resetPage(&next, opts)
		}
	case models.EventPage:
		next.Page = clamp(event.Number, 1, last)
	case models.EventPrev:
		next.Page = max(1, state.Page-1)
	case models.EventNext:
		next.Page = min(last, state.Page+1)
	case models.EventToggle:
		next.Expanded = ToggleExpanded(state.Expanded, event.Number)
	default:
		return state, ErrUnknownEvent
	}
	return next, nil
}

func resetPage(state *models.ViewState, opts Options) {
	if opts.ResetPageOnQueryChange {
		state.Page = 1
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
