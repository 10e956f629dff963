package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/geo"
)

func TestNeedsRefresh(t *testing.T) {
	cases := []struct {
		name    string
		stored  string
		current string
		want    bool
	}{
		{"exact match", "123 Main St, Brooklyn, NY", "123 Main St, Brooklyn, NY", false},
		{"no stored address", "", "123 Main St, Brooklyn, NY", true},
		{"one character changed", "123 Main St, Brooklyn, NY", "124 Main St, Brooklyn, NY", true},
		{"case changed", "123 Main St", "123 main st", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsRefresh(tc.stored, tc.current))
		})
	}
}

func TestEnsureRequestCoordsUsesCache(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldName:               "Alice",
		FieldAddress:            "123 Main St",
		FieldCity:               "Brooklyn",
		FieldCoordinates:        coordsJSON(40.7, -73.9),
		FieldCoordinatesAddress: "123 Main St, Brooklyn, NY",
	})

	geocoder := newFakeGeocoder()
	resolver := NewResolver(store, geocoder, zap.NewNop(), "Requests", "Volunteers", "NY")

	req, err := resolver.EnsureRequestCoords(NewRequest(rec))
	require.NoError(t, err)

	coords, err := req.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, 40.7, coords.Latitude)

	// Cached and current addresses match, so the geocoder is never called.
	assert.Zero(t, geocoder.callCount())
	assert.Empty(t, store.patches)
}

func TestEnsureRequestCoordsRefreshesOnAddressChange(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldName:               "Alice",
		FieldAddress:            "742 Evergreen Terrace",
		FieldCity:               "Brooklyn",
		FieldCoordinates:        coordsJSON(40.7, -73.9),
		FieldCoordinatesAddress: "123 Main St, Brooklyn, NY",
	})

	geocoder := newFakeGeocoder()
	geocoder.coords["742 Evergreen Terrace, Brooklyn, NY"] = &geo.Coordinates{Latitude: 40.8, Longitude: -73.8}

	resolver := NewResolver(store, geocoder, zap.NewNop(), "Requests", "Volunteers", "NY")

	req, err := resolver.EnsureRequestCoords(NewRequest(rec))
	require.NoError(t, err)

	coords, err := req.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, 40.8, coords.Latitude)
	assert.Equal(t, 1, geocoder.callCount())

	// Coordinates and the address that produced them are written together.
	require.Len(t, store.patches, 1)
	patched := store.patches[0].fields
	assert.Equal(t, "742 Evergreen Terrace, Brooklyn, NY", patched[FieldCoordinatesAddress])
	assert.JSONEq(t, coordsJSON(40.8, -73.8), patched[FieldCoordinates].(string))
}

func TestEnsureRequestCoordsGeocodeFailureAnnotates(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Requests", map[string]any{
		FieldName:    "Alice",
		FieldAddress: "nowhere",
		FieldError:   "1580000000000 - earlier failure",
	})

	geocoder := newFakeGeocoder()
	resolver := NewResolver(store, geocoder, zap.NewNop(), "Requests", "Volunteers", "NY")

	_, err := resolver.EnsureRequestCoords(NewRequest(rec))
	require.ErrorIs(t, err, geo.ErrNoResults)

	annotated := store.get("Requests", rec.ID).GetString(FieldError)
	assert.Contains(t, annotated, "while performing geocode")
	assert.Contains(t, annotated, "1580000000000 - earlier failure")
}

func TestEnsureVolunteerCoordsRefreshesOnAddressChange(t *testing.T) {
	store := newFakeStore()
	rec := store.add("Volunteers", map[string]any{
		VolFieldFullName: "Bob",
		VolFieldAddress:  "55 Hudson Yards",
	})

	geocoder := newFakeGeocoder()
	geocoder.coords["55 Hudson Yards"] = &geo.Coordinates{Latitude: 40.75, Longitude: -74.0}

	resolver := NewResolver(store, geocoder, zap.NewNop(), "Requests", "Volunteers", "NY")

	coords, err := resolver.EnsureVolunteerCoords(NewVolunteer(rec))
	require.NoError(t, err)
	assert.Equal(t, 40.75, coords.Latitude)

	stored := store.get("Volunteers", rec.ID)
	assert.Equal(t, "55 Hudson Yards", stored.GetString(FieldCoordinatesAddress))
}
