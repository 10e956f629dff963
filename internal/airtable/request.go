package airtable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const contentType = "application/json"

type listResponse struct {
	Records []*Record `json:"records"`
	Offset  string    `json:"offset,omitempty"`
}

type recordsPayload struct {
	Records []*Record `json:"records"`
}

// list makes GET requests to the Airtable API and returns records from all
// pages, following the offset cursor.
func (c *Client) list(table string, opts SelectOptions) ([]*Record, error) {
	q := url.Values{}
	if opts.View != "" {
		q.Set("view", opts.View)
	}
	if opts.FilterByFormula != "" {
		q.Set("filterByFormula", opts.FilterByFormula)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		// Set pageSize max as possible. It should be faster.
		pageSize = maxPageSize
	}
	q.Set("pageSize", fmt.Sprintf("%d", pageSize))

	var records []*Record
	offset := ""

	for {
		if offset != "" {
			q.Set("offset", offset)
		}

		req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.tableURL(table), nil)
		if err != nil {
			return nil, err
		}

		req = c.setHeaders(req)
		req.URL.RawQuery = q.Encode()

		var response listResponse
		if err := c.do(req, &response); err != nil {
			return nil, err
		}

		records = append(records, response.Records...)

		if response.Offset == "" {
			return records, nil
		}

		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"got offset cursor after %d records", len(records)),
		))
		offset = response.Offset
	}
}

func (c *Client) patch(table, id string, fields map[string]any) (*Record, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}

	rawURL := fmt.Sprintf("%s/%s", c.tableURL(table), id)
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPatch, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	var updated Record
	if err := c.do(req, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (c *Client) create(table string, fieldSets []map[string]any) ([]*Record, error) {
	payload := recordsPayload{}
	for _, fields := range fieldSets {
		payload.Records = append(payload.Records, &Record{Fields: fields})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.tableURL(table), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	var response recordsPayload
	if err := c.do(req, &response); err != nil {
		return nil, err
	}

	return response.Records, nil
}

func (c *Client) do(req *http.Request, target any) error {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.Path))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return err
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	return req
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.APIURL, c.baseID, url.PathEscape(table))
}
