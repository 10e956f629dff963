package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
)

// Notifier posts human-readable dispatches to the coordinator channel. The
// contract is: given a request and a match result, produce a message and
// report success or failure.
type Notifier interface {
	SendDispatch(req *Request, res *MatchResult) error
	SendReminder(req *Request, res *MatchResult) error
	SendAlert(text string)
}

// IdentityLinker resolves a request to a unique person record. Implemented by
// the users service; failures never block notification.
type IdentityLinker interface {
	Link(fullName, phoneNumber string) (string, error)
}

// Recorder receives dispatch counters. Implemented by the metrics package; the
// zero Dispatcher uses a no-op.
type Recorder interface {
	CycleRan()
	RequestProcessed()
	RequestSplit()
	GeocodeErrored()
	NotificationSent(status string)
}

type nopRecorder struct{}

func (nopRecorder) CycleRan()               {}
func (nopRecorder) RequestProcessed()       {}
func (nopRecorder) RequestSplit()           {}
func (nopRecorder) GeocodeErrored()         {}
func (nopRecorder) NotificationSent(string) {}

// MatchResult carries the ranked candidate list for a request, or the fact
// that the request's location could not be resolved, which the notifier
// renders differently from "no volunteers match".
type MatchResult struct {
	Candidates    []*RankedCandidate
	LocationError bool
}

// Config holds the store coordinates and cycle settings of a Dispatcher.
type Config struct {
	RequestsTable   string
	RequestsView    string
	VolunteersTable string
	VolunteersView  string

	// DefaultStatus labels freshly notified requests, unless a coordinator
	// already set one by hand.
	DefaultStatus string

	Interval time.Duration
}

// Dispatcher drives the polling loop: query pending requests, resolve
// coordinates, split multi-task requests, match and rank volunteers, notify,
// and record state transitions back in the store. Stateless between cycles:
// idempotency lives in the store-side query filters.
type Dispatcher struct {
	store    Store
	resolver *Resolver
	splitter *Splitter
	ranker   *Ranker
	notifier Notifier
	users    IdentityLinker
	logger   *zap.Logger
	recorder Recorder
	cfg      Config

	// Guards against a slow cycle overlapping the next tick.
	running sync.Mutex

	now func() time.Time
}

func New(store Store, resolver *Resolver, splitter *Splitter, ranker *Ranker, notifier Notifier, logger *zap.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{
		store:    store,
		resolver: resolver,
		splitter: splitter,
		ranker:   ranker,
		notifier: notifier,
		logger:   logger,
		recorder: nopRecorder{},
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithIdentityLinker wires the optional requester identity linker.
func (d *Dispatcher) WithIdentityLinker(linker IdentityLinker) *Dispatcher {
	d.users = linker
	return d
}

// WithRecorder wires the metrics recorder.
func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.recorder = r
	return d
}

// Run executes one cycle immediately, then one per interval until the context
// is canceled. A tick that arrives while the previous cycle is still running
// is skipped.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.tick()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Dispatcher) tick() {
	if !d.running.TryLock() {
		d.logger.Warn("skipping cycle", zap.String("reason", "previous cycle still running"))
		return
	}
	defer d.running.Unlock()

	d.CheckForNewSubmissions()
	d.CheckReminders()
}

// CheckForNewSubmissions runs one dispatch cycle over all pending requests.
// Requests are processed strictly sequentially so geocoder rate limits are
// respected and log ordering stays deterministic. A failure on one request
// never aborts its siblings.
func (d *Dispatcher) CheckForNewSubmissions() {
	log := d.logger.With(zap.String("cycle_id", uuid.NewString()))
	defer d.recoverCycle(log)

	d.recorder.CycleRan()

	records, err := d.store.ListRecords(d.cfg.RequestsTable, airtable.SelectOptions{
		View:            d.cfg.RequestsView,
		FilterByFormula: fmt.Sprintf("NOT({%s} = 'yes')", FieldWasSplit),
	})
	if err != nil {
		log.Error("querying pending requests", zap.Error(err))
		d.notifier.SendAlert(fmt.Sprintf("querying pending requests: %v", err))
		return
	}

	pending := d.screen(log, records)
	if pending.Len() == 0 {
		log.Debug("no pending requests")
		return
	}

	for _, req := range pending.Items {
		if err := d.processRequest(log, req); err != nil {
			log.Error("processing request failed",
				zap.String("request_id", req.ID()),
				zap.String("name", req.Name()),
				zap.Error(err),
			)
		}
	}
}

// screen drops records the cycle must not touch: form rows without a name and
// requests already posted. The split guard is part of the store query.
func (d *Dispatcher) screen(log *zap.Logger, records []*airtable.Record) *Requests {
	pending := &Requests{}
	for _, rec := range records {
		req := NewRequest(rec)
		if req.Name() == "" || req.Posted() {
			continue
		}
		pending.Items = append(pending.Items, req)
	}

	log.Info("screened pending requests",
		zap.Int("initial", len(records)),
		zap.Int("dropped", len(records)-pending.Len()),
		zap.Int("left", pending.Len()),
	)

	return pending
}

func (d *Dispatcher) processRequest(log *zap.Logger, req *Request) error {
	d.recorder.RequestProcessed()

	req, err := d.resolver.EnsureRequestCoords(req)
	if err != nil {
		d.recorder.GeocodeErrored()
		return fmt.Errorf("resolving coordinates: %w", err)
	}

	if len(req.Tasks()) > 1 {
		d.recorder.RequestSplit()
		req, err = d.splitter.SplitMultiTask(req)
		if err != nil {
			return err
		}
		// Keep going: the original now carries a single task and still
		// needs its own dispatch. The children wait for the next cycle.
	}

	log.Info("new help request", zap.String("name", req.Name()), zap.Strings("tasks", req.RawTasks()))

	if d.users != nil {
		// Identity linking must never block notification.
		if _, err := d.users.Link(req.Name(), req.PhoneNumber()); err != nil {
			log.Warn("linking requester identity failed",
				zap.String("request_id", req.ID()),
				zap.Error(err),
			)
		}
	}

	result, err := d.findVolunteers(req)
	if err != nil {
		return fmt.Errorf("finding volunteers: %w", err)
	}

	if err := d.notifier.SendDispatch(req, result); err != nil {
		// State is deliberately not advanced: the next cycle retries.
		// At-least-once delivery, by contract.
		d.recorder.NotificationSent("failure")
		return fmt.Errorf("posting dispatch: %w", err)
	}
	d.recorder.NotificationSent("success")
	log.Info("posted dispatch", zap.String("request_id", req.ID()))

	status := req.Status()
	if status == "" {
		status = d.cfg.DefaultStatus
	}

	if _, err := d.store.PatchRecord(d.cfg.RequestsTable, req.ID(), map[string]any{
		FieldPostedToSlack: "yes",
		// Don't overwrite a status a coordinator set by hand.
		FieldStatus: status,
	}); err != nil {
		return fmt.Errorf("recording notified state: %w", err)
	}

	return nil
}

// findVolunteers pulls the active volunteer pool, filters it down to those
// able to fulfill at least one requested task, and ranks by distance.
func (d *Dispatcher) findVolunteers(req *Request) (*MatchResult, error) {
	records, err := d.store.ListRecords(d.cfg.VolunteersTable, airtable.SelectOptions{
		View:            d.cfg.VolunteersView,
		FilterByFormula: fmt.Sprintf("{%s} != TRUE()", VolFieldDisabled),
	})
	if err != nil {
		return nil, fmt.Errorf("querying volunteers: %w", err)
	}

	volunteers := make([]*Volunteer, 0, len(records))
	for _, rec := range records {
		volunteers = append(volunteers, NewVolunteer(rec))
	}

	suitable := FilterSuitable(req.Tasks(), volunteers)

	ranked, err := d.ranker.Rank(req, suitable)
	if errors.Is(err, ErrUnresolvedLocation) {
		d.logger.Error("unable to use request coordinates",
			zap.String("request_id", req.ID()),
			zap.String("name", req.Name()),
			zap.Error(err),
		)
		return &MatchResult{LocationError: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return &MatchResult{Candidates: ranked}, nil
}

// CheckReminders re-dispatches requests whose reminder time has elapsed and
// that have not been reminded yet. Each request is reminded at most once; the
// guard is the Reminder Posted flag in the store.
func (d *Dispatcher) CheckReminders() {
	log := d.logger.With(zap.String("cycle_id", uuid.NewString()))
	defer d.recoverCycle(log)

	records, err := d.store.ListRecords(d.cfg.RequestsTable, airtable.SelectOptions{
		View: d.cfg.RequestsView,
		FilterByFormula: fmt.Sprintf(
			"AND({%s} = 'yes', {%s} != 'yes', {%s} != '')",
			FieldPostedToSlack, FieldReminderPosted, FieldReminderDateTime,
		),
	})
	if err != nil {
		log.Error("querying reminder candidates", zap.Error(err))
		return
	}

	for _, rec := range records {
		req := NewRequest(rec)
		if !req.ReminderDue(d.now()) {
			continue
		}

		if err := d.sendReminder(log, req); err != nil {
			log.Error("sending reminder failed",
				zap.String("request_id", req.ID()),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) sendReminder(log *zap.Logger, req *Request) error {
	result, err := d.findVolunteers(req)
	if err != nil {
		return fmt.Errorf("finding volunteers: %w", err)
	}

	if err := d.notifier.SendReminder(req, result); err != nil {
		return fmt.Errorf("posting reminder: %w", err)
	}

	if _, err := d.store.PatchRecord(d.cfg.RequestsTable, req.ID(), map[string]any{
		FieldReminderPosted: "yes",
	}); err != nil {
		return fmt.Errorf("recording reminded state: %w", err)
	}

	log.Info("posted reminder", zap.String("request_id", req.ID()))
	return nil
}

// recoverCycle keeps an unexpected panic in one cycle from crashing the
// scheduler; the next tick starts clean.
func (d *Dispatcher) recoverCycle(log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		d.notifier.SendAlert(fmt.Sprintf("dispatch cycle panicked: %v", r))
	}
}
