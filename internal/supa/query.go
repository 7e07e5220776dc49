package supa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dealstream/pkg/model"
)

// QueryBuilder composes a filtered, ordered, range-limited query against
// one logical table. Builders are single-use.
type QueryBuilder struct {
	ch         *Channel
	table      string
	selectCols string
	filters    []model.Filter
	order      *model.Order
	offset     int
	limit      int
	hasRange   bool
	single     bool
}

func (q *QueryBuilder) Select(cols string) *QueryBuilder {
	q.selectCols = cols
	return q
}

func (q *QueryBuilder) Filter(column string, op model.FilterOp, value string) *QueryBuilder {
	q.filters = append(q.filters, model.Filter{Column: column, Op: op, Value: value})
	return q
}

func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	return q.Filter(column, model.OpEq, value)
}

func (q *QueryBuilder) Gt(column, value string) *QueryBuilder {
	return q.Filter(column, model.OpGt, value)
}

func (q *QueryBuilder) Lte(column, value string) *QueryBuilder {
	return q.Filter(column, model.OpLte, value)
}

// Is filters on SQL identity, e.g. Is("read_at", "null").
func (q *QueryBuilder) Is(column, value string) *QueryBuilder {
	return q.Filter(column, model.OpIs, value)
}

func (q *QueryBuilder) Order(column string, descending bool) *QueryBuilder {
	q.order = &model.Order{Column: column, Descending: descending}
	return q
}

// Range bounds the query to limit rows starting at offset.
func (q *QueryBuilder) Range(offset, limit int) *QueryBuilder {
	q.offset = offset
	q.limit = limit
	q.hasRange = true
	return q
}

// Single requests exactly one row; zero rows surface as NotFound.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

func (q *QueryBuilder) validate() error {
	if q.table == "" {
		return model.Validationf("table name is required")
	}
	for _, f := range q.filters {
		if !f.Validate() {
			return model.Validationf("invalid filter on column %q", f.Column)
		}
	}
	return nil
}

func (q *QueryBuilder) endpoint() (string, error) {
	params := url.Values{}
	params.Set("select", q.selectCols)
	for _, f := range q.filters {
		params.Add(f.Column, fmt.Sprintf("%s.%s", f.Op, f.Value))
	}
	if q.order != nil {
		dir := "asc"
		if q.order.Descending {
			dir = "desc"
		}
		params.Set("order", fmt.Sprintf("%s.%s", q.order.Column, dir))
	}
	if q.hasRange {
		params.Set("offset", strconv.Itoa(q.offset))
		params.Set("limit", strconv.Itoa(q.limit))
	}
	return fmt.Sprintf("%s/rest/v1/%s?%s", q.ch.baseURL, q.table, params.Encode()), nil
}

// Execute runs the data fetch and decodes the response into out.
func (q *QueryBuilder) Execute(ctx context.Context, out any) error {
	if err := q.validate(); err != nil {
		return err
	}
	endpoint, err := q.endpoint()
	if err != nil {
		return err
	}
	return q.do(ctx, http.MethodGet, endpoint, nil, out, nil)
}

// Count runs the row-count variant of the query: same filter set, no
// range, no payload. The count travels back in the Content-Range header.
func (q *QueryBuilder) Count(ctx context.Context) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	counted := &QueryBuilder{ch: q.ch, table: q.table, selectCols: q.selectCols, filters: q.filters}
	endpoint, err := counted.endpoint()
	if err != nil {
		return 0, err
	}
	var total int64 = -1
	header := http.Header{"Prefer": []string{"count=exact"}}
	err = q.doWithHeader(ctx, http.MethodHead, endpoint, nil, nil, header, func(resp *http.Response) error {
		n, perr := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if perr != nil {
			return perr
		}
		total = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Insert submits a new row and decodes the single returned row into out.
func (q *QueryBuilder) Insert(ctx context.Context, body, out any) error {
	if err := q.validate(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s", q.ch.baseURL, q.table)
	return q.do(ctx, http.MethodPost, endpoint, body, out, nil)
}

// Update patches the rows matched by the filter set and decodes the
// single returned row into out.
func (q *QueryBuilder) Update(ctx context.Context, body, out any) error {
	if err := q.validate(); err != nil {
		return err
	}
	if len(q.filters) == 0 {
		return model.Validationf("update requires at least one filter")
	}
	endpoint, err := q.endpoint()
	if err != nil {
		return err
	}
	return q.do(ctx, http.MethodPatch, endpoint, body, out, nil)
}

// Delete removes the rows matched by the filter set.
func (q *QueryBuilder) Delete(ctx context.Context) error {
	if err := q.validate(); err != nil {
		return err
	}
	if len(q.filters) == 0 {
		return model.Validationf("delete requires at least one filter")
	}
	endpoint, err := q.endpoint()
	if err != nil {
		return err
	}
	return q.do(ctx, http.MethodDelete, endpoint, nil, nil, nil)
}

func (q *QueryBuilder) do(ctx context.Context, method, endpoint string, body, out any, extra http.Header) error {
	return q.doWithHeader(ctx, method, endpoint, body, out, extra, nil)
}

func (q *QueryBuilder) doWithHeader(ctx context.Context, method, endpoint string, body, out any, extra http.Header, onResponse func(*http.Response) error) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return model.Internalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return model.Internalf("build request: %v", err)
	}

	req.Header.Set("apikey", q.ch.apikey)
	req.Header.Set("Authorization", "Bearer "+q.ch.bearer)
	req.Header.Set("Content-Type", "application/json")
	if q.single || (out != nil && isMutation(method)) {
		// Ask the service for a bare object instead of a one-element array.
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if isMutation(method) {
		req.Header.Set("Prefer", "return=representation")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := q.ch.httpClient.Do(req)
	if err != nil {
		return model.Transportf(err, "query channel request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return q.classifyStatus(resp)
	}

	if onResponse != nil {
		if err := onResponse(resp); err != nil {
			return err
		}
	}

	if out != nil {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return model.Transportf(err, "read response body")
		}
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return model.Internalf("unmarshal response for table %q: %v", q.table, err)
			}
		}
	}
	return nil
}

func (q *QueryBuilder) classifyStatus(resp *http.Response) error {
	// Drain a bounded slice of the body for the log only; raw downstream
	// text never travels past this point.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	slog.Debug("query channel non-success response",
		"table", q.table,
		"status", resp.StatusCode,
		"body", string(snippet),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return model.Authenticationf("data service rejected credentials for table %q", q.table)
	case http.StatusForbidden:
		return model.Authorizationf("access to table %q denied", q.table)
	case http.StatusNotFound, http.StatusNotAcceptable:
		// 406 is the service's "expected one row, got zero" answer to an
		// object-shaped request.
		return model.NotFoundf("no rows in table %q", q.table)
	case http.StatusConflict:
		return model.Conflictf("conflicting write on table %q", q.table)
	default:
		return model.Databasef(resp.StatusCode, "query on table %q failed", q.table)
	}
}

func isMutation(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch
}

// parseContentRangeTotal extracts the total from a Content-Range header
// shaped like "0-24/57" or "*/57".
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, model.Internalf("missing count in Content-Range %q", header)
	}
	totalPart := header[idx+1:]
	if totalPart == "*" {
		return 0, model.Internalf("data service returned unknown count")
	}
	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		return 0, model.Internalf("malformed count in Content-Range %q", header)
	}
	return total, nil
}
