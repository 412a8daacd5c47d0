package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/models"
)

func TestApplyQueryChangesKeepPageByDefault(t *testing.T) {
	state := models.DefaultViewState()
	state.Page = 3

	next, err := Apply(state, models.ViewEvent{Type: models.EventSearch, Value: "watch"}, 4, Options{})
	require.NoError(t, err)
	assert.Equal(t, "watch", next.Search)
	assert.Equal(t, 3, next.Page)

	next, err = Apply(next, models.ViewEvent{Type: models.EventSortField, Value: "discountedTotal"}, 4, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.SortByDiscountedTotal, next.SortField)
	assert.Equal(t, 3, next.Page)
}

func TestApplyQueryChangesResetPageWhenConfigured(t *testing.T) {
	state := models.DefaultViewState()
	state.Page = 3
	opts := Options{ResetPageOnQueryChange: true}

	next, err := Apply(state, models.ViewEvent{Type: models.EventSortOrder, Value: "asc"}, 4, opts)
	require.NoError(t, err)
	assert.Equal(t, models.SortAsc, next.SortOrder)
	assert.Equal(t, 1, next.Page)
}

func TestApplyIgnoresInvalidSortValues(t *testing.T) {
	state := models.DefaultViewState()
	next, err := Apply(state, models.ViewEvent{Type: models.EventSortField, Value: "price"}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.SortByTotal, next.SortField)

	next, err = Apply(state, models.ViewEvent{Type: models.EventSortOrder, Value: "sideways"}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.SortDesc, next.SortOrder)
}

func TestApplyNavigationClamps(t *testing.T) {
	state := models.DefaultViewState()

	prev, err := Apply(state, models.ViewEvent{Type: models.EventPrev}, 3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Page)

	state.Page = 3
	next, err := Apply(state, models.ViewEvent{Type: models.EventNext}, 3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, next.Page)

	jump, err := Apply(state, models.ViewEvent{Type: models.EventPage, Number: 99}, 3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, jump.Page)

	jump, err = Apply(state, models.ViewEvent{Type: models.EventPage, Number: -2}, 3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, jump.Page)

	empty, err := Apply(state, models.ViewEvent{Type: models.EventNext}, 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.Page)
}

func TestApplyToggle(t *testing.T) {
	state := models.DefaultViewState()
	next, err := Apply(state, models.ViewEvent{Type: models.EventToggle, Number: 5}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, next.Expanded)
	assert.Empty(t, state.Expanded)

	back, err := Apply(next, models.ViewEvent{Type: models.EventToggle, Number: 5}, 1, Options{})
	require.NoError(t, err)
	assert.Empty(t, back.Expanded)
}

func TestApplyUnknownEvent(t *testing.T) {
	state := models.DefaultViewState()
	got, err := Apply(state, models.ViewEvent{Type: "explode"}, 1, Options{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, state, got)
}
