package dispatch

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotMultiTask reports a caller bug: splitting is only defined for
// requests carrying more than one task.
var ErrNotMultiTask = errors.New("request does not have multiple tasks")

// Splitter decomposes multi-task requests into single-task children so that
// matching, ranking and notification only ever reason about one task at a
// time.
type Splitter struct {
	store  Store
	logger *zap.Logger

	requestsTable string
}

func NewSplitter(store Store, logger *zap.Logger, requestsTable string) *Splitter {
	return &Splitter{
		store:         store,
		logger:        logger,
		requestsTable: requestsTable,
	}
}

// SplitMultiTask creates one child request per task beyond the first, each a
// copy of the original with a singleton task list, a back-reference and a
// "k of N" order label. The original is then trimmed to its first task and
// marked split, but only after every child creation succeeded, so a partial
// failure leaves the original eligible and the whole split is retried next
// cycle. Already-created siblings are not rolled back. The trimmed original
// is returned so the caller can keep processing it as a single-task request.
func (s *Splitter) SplitMultiTask(req *Request) (*Request, error) {
	tasks := req.Tasks()
	if len(tasks) <= 1 {
		return nil, fmt.Errorf("split request %s: %w", req.ID(), ErrNotMultiTask)
	}

	total := len(tasks)
	children := make([]map[string]any, 0, total-1)
	for i, task := range tasks[1:] {
		children = append(children, cloneFieldsWithTask(req, task, fmt.Sprintf("%d of %d", i+2, total)))
	}

	if _, err := s.store.CreateRecords(s.requestsTable, children); err != nil {
		return nil, fmt.Errorf("creating split children of request %s: %w", req.ID(), err)
	}

	updated, err := s.store.PatchRecord(s.requestsTable, req.ID(), map[string]any{
		FieldTasks:         []string{tasks[0].Raw},
		FieldOriginalTasks: req.RawTasks(),
		FieldTaskOrder:     fmt.Sprintf("1 of %d", total),
		FieldWasSplit:      "yes",
	})
	if err != nil {
		return nil, fmt.Errorf("marking request %s as split: %w", req.ID(), err)
	}

	s.logger.Info("split multi-task request",
		zap.String("request_id", req.ID()),
		zap.Int("tasks", total),
	)

	return NewRequest(updated), nil
}

// cloneFieldsWithTask copies the original's fields for a child record,
// replacing the task list and stripping system columns the store maintains
// itself.
func cloneFieldsWithTask(req *Request, task *Task, order string) map[string]any {
	fields := req.Fields()

	fields[FieldOriginalTasks] = req.RawTasks()
	fields[FieldTasks] = []string{task.Raw}
	fields[FieldClonedFrom] = []string{req.ID()}
	fields[FieldTaskOrder] = order

	delete(fields, FieldCreatedTime)
	delete(fields, FieldRecordID)
	delete(fields, FieldError)

	return fields
}
