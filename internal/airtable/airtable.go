package airtable

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL = "https://api.airtable.com/v0"

	// Airtable caps list responses at 100 records per page and bulk
	// creation at 10 records per request.
	maxPageSize    = 100
	maxCreateChunk = 10
)

// Client talks to the Airtable REST API for one base. The store owns the
// durable Request/Volunteer/User records; this client only reads them and
// patches the small set of fields the dispatcher maintains.
type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	token      string
	baseID     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

// SelectOptions narrow a list query. FilterByFormula carries the store-side
// idempotency guards, so transition checks happen at query time rather than in
// process memory.
type SelectOptions struct {
	View            string
	FilterByFormula string
	PageSize        int
}

func New(ctx context.Context, logger *zap.Logger, token, baseID string) *Client {
	return &Client{
		ctx:    ctx,
		token:  token,
		baseID: baseID,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListRecords pages through all records of the table matching the options.
func (c *Client) ListRecords(table string, opts SelectOptions) ([]*Record, error) {
	return c.list(table, opts)
}

// PatchRecord updates only the named fields of a record, leaving every other
// field untouched.
func (c *Client) PatchRecord(table, id string, fields map[string]any) (*Record, error) {
	return c.patch(table, id, fields)
}

// CreateRecords bulk-creates records from the given field sets, chunking to
// respect the API limit. Created records are returned in input order.
func (c *Client) CreateRecords(table string, fieldSets []map[string]any) ([]*Record, error) {
	var created []*Record

	for start := 0; start < len(fieldSets); start += maxCreateChunk {
		end := start + maxCreateChunk
		if end > len(fieldSets) {
			end = len(fieldSets)
		}

		records, err := c.create(table, fieldSets[start:end])
		if err != nil {
			return created, err
		}
		created = append(created, records...)
	}

	return created, nil
}
