package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
)

func TestSplitMultiTask(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldName:        "Alice",
		FieldPhoneNumber: "555-123-4567",
		FieldTasks:       []string{"Grocery shopping", "Dog walking", "Loneliness"},
		FieldCreatedTime: "2020-04-02T12:00:00.000Z",
		FieldError:       "stale annotation",
	})

	splitter := NewSplitter(store, zap.NewNop(), "Requests")

	updated, err := splitter.SplitMultiTask(NewRequest(rec))
	require.NoError(t, err)

	// The original keeps its first task and is retired from splitting.
	assert.Equal(t, []string{"Grocery shopping"}, updated.RawTasks())
	assert.Equal(t, "1 of 3", updated.TaskOrder())
	assert.True(t, updated.WasSplit())

	children, err := store.ListRecords("Requests", airtable.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, children, 3)

	second := NewRequest(children[1])
	third := NewRequest(children[2])

	assert.Equal(t, []string{"Dog walking"}, second.RawTasks())
	assert.Equal(t, "2 of 3", second.TaskOrder())
	assert.Equal(t, []string{"Loneliness"}, third.RawTasks())
	assert.Equal(t, "3 of 3", third.TaskOrder())

	for _, child := range []*Request{second, third} {
		// Clones keep requester fields, link back to the original and
		// drop system columns.
		assert.Equal(t, "Alice", child.Name())
		assert.Equal(t, "555-123-4567", child.PhoneNumber())
		assert.Equal(t, []string{rec.ID}, child.Fields()[FieldClonedFrom])
		assert.Equal(t,
			[]string{"Grocery shopping", "Dog walking", "Loneliness"},
			child.Fields()[FieldOriginalTasks],
		)
		assert.NotContains(t, child.Fields(), FieldCreatedTime)
		assert.NotContains(t, child.Fields(), FieldError)
		assert.False(t, child.WasSplit())
	}
}

func TestSplitSingleTaskFailsLoudly(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldTasks: []string{"Grocery shopping"},
	})

	splitter := NewSplitter(store, zap.NewNop(), "Requests")

	_, err := splitter.SplitMultiTask(NewRequest(rec))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotMultiTask))
}

func TestSplitCreateFailureLeavesOriginalUntouched(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldTasks: []string{"Grocery shopping", "Dog walking"},
	})
	store.createErr = errors.New("airtable is down")

	splitter := NewSplitter(store, zap.NewNop(), "Requests")

	_, err := splitter.SplitMultiTask(NewRequest(rec))
	require.Error(t, err)

	// The original stays eligible, so the next cycle retries the split.
	original := NewRequest(store.get("Requests", rec.ID))
	assert.False(t, original.WasSplit())
	assert.Equal(t, []string{"Grocery shopping", "Dog walking"}, original.RawTasks())
	assert.Empty(t, store.patches)
}
