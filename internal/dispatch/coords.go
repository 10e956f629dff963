package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
	"go.uber.org/zap"
)

// Store is the slice of the record store the dispatcher needs. Satisfied by
// *airtable.Client; tests plug in fakes.
type Store interface {
	ListRecords(table string, opts airtable.SelectOptions) ([]*airtable.Record, error)
	PatchRecord(table, id string, fields map[string]any) (*airtable.Record, error)
	CreateRecords(table string, fieldSets []map[string]any) ([]*airtable.Record, error)
}

// NeedsRefresh decides whether cached coordinates are stale relative to the
// entity's current address. Staleness is exact string equality, not geographic
// equality: the cache exists only to bound geocoder call volume, so a cosmetic
// address edit forces a re-geocode.
func NeedsRefresh(storedAddress, currentAddress string) bool {
	return storedAddress == "" || storedAddress != currentAddress
}

// Resolver keeps request and volunteer coordinates fresh, writing resolved
// pairs back to the store together with the address that produced them.
type Resolver struct {
	store    Store
	geocoder geo.Geocoder
	logger   *zap.Logger

	requestsTable   string
	volunteersTable string
	state           string

	now func() time.Time
}

func NewResolver(store Store, geocoder geo.Geocoder, logger *zap.Logger, requestsTable, volunteersTable, state string) *Resolver {
	return &Resolver{
		store:           store,
		geocoder:        geocoder,
		logger:          logger,
		requestsTable:   requestsTable,
		volunteersTable: volunteersTable,
		state:           state,
		now:             time.Now,
	}
}

// EnsureRequestCoords returns the request with fresh coordinates, geocoding
// and patching the store when the cache is stale. Geocoding and store failures
// are annotated on the record's Error field and propagated so the cycle skips
// this request.
func (r *Resolver) EnsureRequestCoords(req *Request) (*Request, error) {
	address := req.FullAddress(r.state)

	if !NeedsRefresh(req.CoordinatesAddress(), address) {
		if _, err := req.Coordinates(); err == nil {
			return req, nil
		}
	}

	coords, err := r.geocoder.Geocode(address)
	if err != nil {
		r.logger.Error("unable to retrieve request coordinates",
			zap.String("request_id", req.ID()),
			zap.String("name", req.Name()),
			zap.Error(err),
		)
		r.logErrorToStore(r.requestsTable, req.rec, err, "geocode")
		return nil, fmt.Errorf("geocode request %s: %w", req.ID(), err)
	}

	updated, err := r.patchCoords(r.requestsTable, req.ID(), coords, address)
	if err != nil {
		r.logErrorToStore(r.requestsTable, req.rec, err, "update _coordinates")
		return nil, fmt.Errorf("store request coordinates %s: %w", req.ID(), err)
	}

	return NewRequest(updated), nil
}

// EnsureVolunteerCoords returns fresh coordinates for a volunteer, refreshing
// the cache when the stored address no longer matches.
func (r *Resolver) EnsureVolunteerCoords(v *Volunteer) (*geo.Coordinates, error) {
	address := v.Address()

	if !NeedsRefresh(v.CoordinatesAddress(), address) {
		if coords, err := v.Coordinates(); err == nil {
			return coords, nil
		}
	}

	coords, err := r.geocoder.Geocode(address)
	if err != nil {
		r.logger.Info("unable to retrieve volunteer coordinates",
			zap.String("volunteer_id", v.ID()),
			zap.String("full_name", v.FullName()),
			zap.Error(err),
		)
		r.logErrorToStore(r.volunteersTable, v.rec, err, "geocode")
		return nil, fmt.Errorf("geocode volunteer %s: %w", v.ID(), err)
	}

	if _, err := r.patchCoords(r.volunteersTable, v.ID(), coords, address); err != nil {
		r.logErrorToStore(r.volunteersTable, v.rec, err, "update _coordinates")
		return nil, fmt.Errorf("store volunteer coordinates %s: %w", v.ID(), err)
	}

	return coords, nil
}

// patchCoords writes the coordinate pair and the address that produced it in
// one update, so the cache can never hold one without the other.
func (r *Resolver) patchCoords(table, id string, coords *geo.Coordinates, address string) (*airtable.Record, error) {
	encoded, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}

	return r.store.PatchRecord(table, id, map[string]any{
		FieldCoordinates:        string(encoded),
		FieldCoordinatesAddress: address,
	})
}

// logErrorToStore appends a timestamped error annotation to the record's Error
// field, preserving earlier entries. Best effort: an annotation failure is
// only logged.
func (r *Resolver) logErrorToStore(table string, rec *airtable.Record, cause error, operation string) {
	annotation := fmt.Sprintf("%d - %v", r.now().UnixMilli(), cause)
	if operation != "" {
		annotation += fmt.Sprintf(" while performing %s", operation)
	}
	if existing := rec.GetString(FieldError); existing != "" {
		annotation = fmt.Sprintf("%s, %s", existing, annotation)
	}

	if _, err := r.store.PatchRecord(table, rec.ID, map[string]any{FieldError: annotation}); err != nil {
		r.logger.Error("unable to update Error field",
			zap.String("table", table),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
	}
}
