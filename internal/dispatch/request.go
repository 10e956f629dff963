package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
)

// Request field names as they appear in the store. Underscore-prefixed fields
// are system columns owned by the dispatcher, never edited by coordinators.
const (
	FieldName               = "Name"
	FieldPhoneNumber        = "Phone number"
	FieldAddress            = "Address"
	FieldCity               = "City"
	FieldTasks              = "Tasks"
	FieldTaskOther          = "Task - other"
	FieldLanguage           = "Language"
	FieldLanguageOther      = "Language - other"
	FieldTimeframe          = "Timeframe"
	FieldAnythingElse       = "Anything else"
	FieldStatus             = "Status"
	FieldError              = "Error"
	FieldWasSplit           = "Was split?"
	FieldPostedToSlack      = "Posted to Slack?"
	FieldOriginalTasks      = "Original Tasks"
	FieldClonedFrom         = "Cloned from"
	FieldTaskOrder          = "Task Order"
	FieldCreatedTime        = "Created time"
	FieldRecordID           = "Record ID"
	FieldReminderDateTime   = "Reminder Date/Time"
	FieldReminderPosted     = "Reminder Posted"
	FieldSubsidy            = "Please note, we are a volunteer-run organization, but may be able to help offset some of the cost of hard goods. Do you need a subsidy for your assistance?"
	FieldCoordinates        = "_coordinates"
	FieldCoordinatesAddress = "_coordinates_address"
)

// Request is a typed view over one help-request record.
type Request struct {
	rec *airtable.Record
}

func NewRequest(rec *airtable.Record) *Request {
	return &Request{rec: rec}
}

func (r *Request) ID() string { return r.rec.ID }

func (r *Request) Name() string { return r.rec.GetString(FieldName) }

func (r *Request) PhoneNumber() string { return r.rec.GetString(FieldPhoneNumber) }

func (r *Request) Address() string { return r.rec.GetString(FieldAddress) }

// FullAddress composes the street address, city and the configured state into
// the string handed to the geocoder.
func (r *Request) FullAddress(state string) string {
	parts := []string{r.Address(), r.rec.GetString(FieldCity), state}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// RawTasks returns the task labels exactly as stored.
func (r *Request) RawTasks() []string { return r.rec.GetStrings(FieldTasks) }

// Tasks maps the stored labels onto the catalog, dropping unknown labels.
func (r *Request) Tasks() []*Task {
	var tasks []*Task
	for _, raw := range r.RawTasks() {
		if task := TaskFromRaw(raw); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func (r *Request) OtherTask() string { return r.rec.GetString(FieldTaskOther) }

// Languages lists the requester's languages, primary selections first.
func (r *Request) Languages() []string { return r.rec.GetStrings(FieldLanguage) }

func (r *Request) OtherLanguage() string { return r.rec.GetString(FieldLanguageOther) }

func (r *Request) Timeframe() string { return r.rec.GetString(FieldTimeframe) }

func (r *Request) AnythingElse() string { return r.rec.GetString(FieldAnythingElse) }

func (r *Request) Status() string { return r.rec.GetString(FieldStatus) }

func (r *Request) TaskOrder() string { return r.rec.GetString(FieldTaskOrder) }

func (r *Request) SubsidyRequested() bool {
	return strings.TrimSpace(r.rec.GetString(FieldSubsidy)) != ""
}

func (r *Request) WasSplit() bool {
	return r.rec.GetString(FieldWasSplit) == "yes"
}

func (r *Request) Posted() bool {
	return r.rec.GetString(FieldPostedToSlack) == "yes"
}

func (r *Request) ReminderPosted() bool {
	return r.rec.GetString(FieldReminderPosted) == "yes"
}

// ReminderDue reports whether a reminder timestamp is set and has elapsed.
// The field holds epoch milliseconds written by the chat button workflow.
func (r *Request) ReminderDue(now time.Time) bool {
	raw := strings.TrimSpace(r.rec.GetString(FieldReminderDateTime))
	if raw == "" {
		return false
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}

	return !now.Before(time.UnixMilli(millis))
}

// CoordinatesAddress is the exact address string that produced the cached
// coordinates; staleness is detected by comparing it to the current address.
func (r *Request) CoordinatesAddress() string {
	return r.rec.GetString(FieldCoordinatesAddress)
}

// Coordinates parses the cached coordinate pair. An error means the request
// has no usable location yet.
func (r *Request) Coordinates() (*geo.Coordinates, error) {
	raw := r.rec.GetString(FieldCoordinates)
	if raw == "" {
		return nil, fmt.Errorf("request %s has no stored coordinates", r.ID())
	}

	var coords geo.Coordinates
	if err := json.Unmarshal([]byte(raw), &coords); err != nil {
		return nil, fmt.Errorf("parsing stored coordinates of request %s: %w", r.ID(), err)
	}

	return &coords, nil
}

// Fields returns a copy of the raw field map, for cloning during a split.
func (r *Request) Fields() map[string]any { return r.rec.CopyFields() }

// Requests is a pageable collection of requests.
type Requests struct {
	Items []*Request
}

func (r *Requests) Len() int {
	return len(r.Items)
}
