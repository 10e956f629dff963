package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
)

// dogWalkingRequest sits at (40.758, -73.931) and needs dog walking.
func dogWalkingRequest() *Request {
	return NewRequest(&airtable.Record{ID: "req1", Fields: map[string]any{
		FieldName:               "Alice",
		FieldTasks:              []string{"Dog walking"},
		FieldCoordinates:        coordsJSON(40.758, -73.931),
		FieldCoordinatesAddress: "irrelevant",
	}})
}

// cachedVolunteer has coordinates resolved so ranking never hits the geocoder.
func cachedVolunteer(id, name string, lat, lng float64, capabilities ...string) *Volunteer {
	return NewVolunteer(&airtable.Record{ID: id, Fields: map[string]any{
		VolFieldFullName:        name,
		VolFieldCapabilities:    capabilities,
		VolFieldAddress:         "cached",
		FieldCoordinates:        coordsJSON(lat, lng),
		FieldCoordinatesAddress: "cached",
	}})
}

func testRanker(limit int) *Ranker {
	resolver := NewResolver(newFakeStore(), newFakeGeocoder(), zap.NewNop(), "Requests", "Volunteers", "NY")
	return NewRanker(resolver, zap.NewNop(), limit)
}

func TestFilterSuitable(t *testing.T) {
	walker := cachedVolunteer("vol1", "Walker", 0, 0, "Pet-sitting/walking/feeding")
	shopper := cachedVolunteer("vol2", "Shopper", 0, 0, "Picking up groceries/medications")
	both := cachedVolunteer("vol3", "Both", 0, 0, "Pet-sitting/walking/feeding", "Meal delivery")

	suitable := FilterSuitable(dogWalkingRequest().Tasks(), []*Volunteer{walker, shopper, both})

	require.Len(t, suitable, 2)
	assert.Equal(t, "Walker", suitable[0].FullName())
	assert.Equal(t, "Both", suitable[1].FullName())
}

func TestFilterSuitableAnyOfSeveralTasks(t *testing.T) {
	req := NewRequest(&airtable.Record{ID: "req2", Fields: map[string]any{
		FieldTasks: []string{"Dog walking", "Grocery shopping"},
	}})
	shopper := cachedVolunteer("vol1", "Shopper", 0, 0, "Picking up groceries/medications")

	// Fulfilling one of the requested tasks is enough.
	suitable := FilterSuitable(req.Tasks(), []*Volunteer{shopper})
	require.Len(t, suitable, 1)
}

func TestRankOrdersByDistance(t *testing.T) {
	// Latitude offsets put the volunteers roughly 0.5 and 2.1 miles away.
	near := cachedVolunteer("vol1", "Near", 40.7652285, -73.931, "Pet-sitting/walking/feeding")
	far := cachedVolunteer("vol2", "Far", 40.7883599, -73.931, "Pet-sitting/walking/feeding")

	ranked, err := testRanker(10).Rank(dogWalkingRequest(), []*Volunteer{far, near})
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "Near", ranked[0].Volunteer.FullName())
	assert.Equal(t, "Far", ranked[1].Volunteer.FullName())
	assert.InDelta(t, 0.5, ranked[0].Distance, 0.01)
	assert.InDelta(t, 2.1, ranked[1].Distance, 0.01)
}

func TestRankIsDeterministicAndStableOnTies(t *testing.T) {
	first := cachedVolunteer("vol1", "First", 40.76, -73.931, "Pet-sitting/walking/feeding")
	second := cachedVolunteer("vol2", "Second", 40.76, -73.931, "Pet-sitting/walking/feeding")

	for i := 0; i < 5; i++ {
		ranked, err := testRanker(10).Rank(dogWalkingRequest(), []*Volunteer{first, second})
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Equal(t, "First", ranked[0].Volunteer.FullName())
		assert.Equal(t, "Second", ranked[1].Volunteer.FullName())
	}
}

func TestRankHonorsLimit(t *testing.T) {
	volunteers := []*Volunteer{
		cachedVolunteer("vol1", "A", 40.76, -73.931, "Pet-sitting/walking/feeding"),
		cachedVolunteer("vol2", "B", 40.77, -73.931, "Pet-sitting/walking/feeding"),
		cachedVolunteer("vol3", "C", 40.78, -73.931, "Pet-sitting/walking/feeding"),
	}

	ranked, err := testRanker(2).Rank(dogWalkingRequest(), volunteers)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRankLanguagePriority(t *testing.T) {
	req := NewRequest(&airtable.Record{ID: "req1", Fields: map[string]any{
		FieldName:               "Alicia",
		FieldTasks:              []string{"Dog walking"},
		FieldLanguage:           []string{"Spanish"},
		FieldCoordinates:        coordsJSON(40.758, -73.931),
		FieldCoordinatesAddress: "irrelevant",
	}})

	near := cachedVolunteer("vol1", "Near", 40.76, -73.931, "Pet-sitting/walking/feeding")
	farSpanish := cachedVolunteer("vol2", "FarSpanish", 40.79, -73.931, "Pet-sitting/walking/feeding")
	farSpanish.rec.Fields[VolFieldLanguages] = []string{"Spanish"}

	ranker := testRanker(10)
	ranker.LanguagePriority = true

	ranked, err := ranker.Rank(req, []*Volunteer{near, farSpanish})
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// Fluent speakers of the requested language come first, then distance.
	assert.Equal(t, "FarSpanish", ranked[0].Volunteer.FullName())
	assert.Equal(t, "Near", ranked[1].Volunteer.FullName())

	// Without the variant enabled, plain distance order wins.
	ranker.LanguagePriority = false
	ranked, err = ranker.Rank(req, []*Volunteer{near, farSpanish})
	require.NoError(t, err)
	assert.Equal(t, "Near", ranked[0].Volunteer.FullName())
}

func TestRankLanguagePriorityDisabledForEnglish(t *testing.T) {
	near := cachedVolunteer("vol1", "Near", 40.76, -73.931, "Pet-sitting/walking/feeding")
	farEnglish := cachedVolunteer("vol2", "FarEnglish", 40.79, -73.931, "Pet-sitting/walking/feeding")
	farEnglish.rec.Fields[VolFieldLanguages] = []string{"English"}

	ranker := testRanker(10)
	ranker.LanguagePriority = true

	ranked, err := ranker.Rank(dogWalkingRequest(), []*Volunteer{near, farEnglish})
	require.NoError(t, err)
	assert.Equal(t, "Near", ranked[0].Volunteer.FullName())
}

func TestRankUnresolvedLocation(t *testing.T) {
	req := NewRequest(&airtable.Record{ID: "req1", Fields: map[string]any{
		FieldName:  "Alice",
		FieldTasks: []string{"Dog walking"},
	}})

	_, err := testRanker(10).Rank(req, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedLocation))
}

func TestRankSkipsVolunteersThatFailGeocoding(t *testing.T) {
	cached := cachedVolunteer("vol1", "Cached", 40.76, -73.931, "Pet-sitting/walking/feeding")
	unresolved := NewVolunteer(&airtable.Record{ID: "vol2", Fields: map[string]any{
		VolFieldFullName:     "Unresolved",
		VolFieldCapabilities: []string{"Pet-sitting/walking/feeding"},
		VolFieldAddress:      "nowhere",
	}})

	ranked, err := testRanker(10).Rank(dogWalkingRequest(), []*Volunteer{unresolved, cached})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Cached", ranked[0].Volunteer.FullName())
}
