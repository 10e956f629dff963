package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
)

// fakeStore is an in-memory Store. It evaluates the formula shapes the
// dispatcher issues, so the store-side idempotency guards are exercised the
// same way the real store applies them.
type fakeStore struct {
	mu     sync.Mutex
	tables map[string][]*airtable.Record
	nextID int

	patches []patchCall

	listErr   error
	patchErr  error
	createErr error
}

type patchCall struct {
	table  string
	id     string
	fields map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: map[string][]*airtable.Record{}}
}

func (s *fakeStore) add(table string, fields map[string]any) *airtable.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := &airtable.Record{ID: fmt.Sprintf("rec%d", s.nextID), Fields: fields}
	s.tables[table] = append(s.tables[table], rec)
	return rec
}

func (s *fakeStore) get(table, id string) *airtable.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.tables[table] {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (s *fakeStore) ListRecords(table string, opts airtable.SelectOptions) ([]*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []*airtable.Record
	for _, rec := range s.tables[table] {
		if matchesFormula(opts.FilterByFormula, rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) PatchRecord(table, id string, fields map[string]any) (*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.patchErr != nil {
		return nil, s.patchErr
	}

	for _, rec := range s.tables[table] {
		if rec.ID == id {
			for k, v := range fields {
				rec.Fields[k] = v
			}
			s.patches = append(s.patches, patchCall{table: table, id: id, fields: fields})
			return rec, nil
		}
	}
	return nil, fmt.Errorf("record %s not found in table %s", id, table)
}

func (s *fakeStore) CreateRecords(table string, fieldSets []map[string]any) ([]*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}

	var created []*airtable.Record
	for _, fields := range fieldSets {
		s.nextID++
		rec := &airtable.Record{ID: fmt.Sprintf("rec%d", s.nextID), Fields: fields}
		s.tables[table] = append(s.tables[table], rec)
		created = append(created, rec)
	}
	return created, nil
}

// matchesFormula evaluates the small formula subset the dispatcher uses:
// {F} = 'v', {F} != 'v', {F} != '', {F} != TRUE(), NOT(...) and AND(...).
func matchesFormula(formula string, rec *airtable.Record) bool {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return true
	}

	if inner, ok := unwrapCall(formula, "NOT"); ok {
		return !matchesFormula(inner, rec)
	}
	if inner, ok := unwrapCall(formula, "AND"); ok {
		for _, clause := range splitClauses(inner) {
			if !matchesFormula(clause, rec) {
				return false
			}
		}
		return true
	}

	if field, value, ok := strings.Cut(formula, " != "); ok {
		return !fieldEquals(rec, field, value)
	}
	if field, value, ok := strings.Cut(formula, " = "); ok {
		return fieldEquals(rec, field, value)
	}

	panic(fmt.Sprintf("fakeStore cannot evaluate formula %q", formula))
}

func fieldEquals(rec *airtable.Record, field, value string) bool {
	name := strings.Trim(strings.TrimSpace(field), "{}")
	if value == "TRUE()" {
		b, _ := rec.Fields[name].(bool)
		return b
	}
	return rec.GetString(name) == strings.Trim(value, "'")
}

func unwrapCall(s, fn string) (string, bool) {
	if strings.HasPrefix(s, fn+"(") && strings.HasSuffix(s, ")") {
		return s[len(fn)+1 : len(s)-1], true
	}
	return "", false
}

func splitClauses(s string) []string {
	var clauses []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				clauses = append(clauses, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(clauses, strings.TrimSpace(s[start:]))
}

// fakeGeocoder resolves addresses from a fixed map and records every call.
type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]*geo.Coordinates
	errs   map[string]error
	calls  []string
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		coords: map[string]*geo.Coordinates{},
		errs:   map[string]error{},
	}
}

func (g *fakeGeocoder) Geocode(address string) (*geo.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, address)
	if err := g.errs[address]; err != nil {
		return nil, err
	}
	if c, ok := g.coords[address]; ok {
		return c, nil
	}
	return nil, geo.ErrNoResults
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// fakeNotifier records every delivery attempt.
type fakeNotifier struct {
	dispatches []*Request
	results    []*MatchResult
	reminders  []*Request
	alerts     []string

	sendErr error
}

func (n *fakeNotifier) SendDispatch(req *Request, res *MatchResult) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.dispatches = append(n.dispatches, req)
	n.results = append(n.results, res)
	return nil
}

func (n *fakeNotifier) SendReminder(req *Request, res *MatchResult) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.reminders = append(n.reminders, req)
	return nil
}

func (n *fakeNotifier) SendAlert(text string) {
	n.alerts = append(n.alerts, text)
}

func coordsJSON(lat, lng float64) string {
	encoded, _ := json.Marshal(geo.Coordinates{Latitude: lat, Longitude: lng})
	return string(encoded)
}
