package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
)

// Volunteer field names as they appear in the store. The long ones are intake
// form questions verbatim; the trailing space on the transportation field is
// in the form itself.
const (
	VolFieldFullName       = "Full Name"
	VolFieldPhoneNumber    = "Please provide your contact phone number:"
	VolFieldCapabilities   = "I can provide the following support (non-binding)"
	VolFieldLanguages      = "Please select any language you have verbal fluency with:"
	VolFieldAddress        = "Full Street address (You can leave out your apartment/unit.)"
	VolFieldTransportation = "Do you have a private mode of transportation with valid license/insurance? "
	VolFieldDisabled       = "Account Disabled"
)

// Volunteer is a typed view over one candidate helper record.
type Volunteer struct {
	rec *airtable.Record
}

func NewVolunteer(rec *airtable.Record) *Volunteer {
	return &Volunteer{rec: rec}
}

func (v *Volunteer) ID() string { return v.rec.ID }

func (v *Volunteer) FullName() string { return v.rec.GetString(VolFieldFullName) }

func (v *Volunteer) PhoneNumber() string { return v.rec.GetString(VolFieldPhoneNumber) }

func (v *Volunteer) Address() string { return v.rec.GetString(VolFieldAddress) }

// Capabilities lists the volunteer's declared support capabilities, matched
// by prefix against task requirements.
func (v *Volunteer) Capabilities() []string {
	return v.rec.GetStrings(VolFieldCapabilities)
}

// Languages lists the languages the volunteer declared verbal fluency with.
func (v *Volunteer) Languages() []string {
	return v.rec.GetStrings(VolFieldLanguages)
}

// SpeaksFluently reports whether the volunteer declared fluency with the
// given language.
func (v *Volunteer) SpeaksFluently(language string) bool {
	for _, l := range v.Languages() {
		if l == language {
			return true
		}
	}
	return false
}

func (v *Volunteer) TransportationModes() []string {
	return v.rec.GetStrings(VolFieldTransportation)
}

// CoordinatesAddress is the address string that produced the cached
// coordinates.
func (v *Volunteer) CoordinatesAddress() string {
	return v.rec.GetString(FieldCoordinatesAddress)
}

// Coordinates parses the cached coordinate pair.
func (v *Volunteer) Coordinates() (*geo.Coordinates, error) {
	raw := v.rec.GetString(FieldCoordinates)
	if raw == "" {
		return nil, fmt.Errorf("volunteer %s has no stored coordinates", v.ID())
	}

	var coords geo.Coordinates
	if err := json.Unmarshal([]byte(raw), &coords); err != nil {
		return nil, fmt.Errorf("parsing stored coordinates of volunteer %s: %w", v.ID(), err)
	}

	return &coords, nil
}
