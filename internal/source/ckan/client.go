package ckan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
)

// ErrAPI is returned when CKAN answers with success=false.
var ErrAPI = errors.New("ckan api error")

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// SearchResult is the result object of datastore_search and
// datastore_search_sql.
type SearchResult struct {
	Records []source.Record `json:"records"`
	Total   int             `json:"total"`
}

// Client is an HTTP client for the CKAN datastore API.
type Client struct {
	baseURL string
	http    *source.Client
}

// NewClient creates a CKAN client rooted at the action API base URL.
func NewClient(baseURL string, hc *source.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// Search fetches one datastore_search page with exact-match filters.
func (c *Client) Search(ctx context.Context, resourceID string, filters map[string]string, limit, offset int) (SearchResult, error) {
	params := url.Values{}
	params.Set("resource_id", resourceID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if len(filters) > 0 {
		f, err := json.Marshal(filters)
		if err != nil {
			return SearchResult{}, fmt.Errorf("encode filters: %w", err)
		}
		params.Set("filters", string(f))
	}

	endpoint := c.baseURL + "/datastore_search"
	start := time.Now()
	source.LogRequest("ckan", "GET", endpoint, map[string]interface{}{
		"resource": short(resourceID),
		"offset":   offset,
	})

	res, err := c.call(ctx, endpoint, params)
	if err != nil {
		source.LogError("ckan", "datastore_search", err)
		return SearchResult{}, err
	}
	source.LogResponse("ckan", 200, time.Since(start), len(res.Records))
	return res, nil
}

// SearchSQL runs a read-only datastore_search_sql query.
func (c *Client) SearchSQL(ctx context.Context, sql string) (SearchResult, error) {
	params := url.Values{}
	params.Set("sql", sql)

	endpoint := c.baseURL + "/datastore_search_sql"
	start := time.Now()
	source.LogRequest("ckan", "GET", endpoint, nil)

	res, err := c.call(ctx, endpoint, params)
	if err != nil {
		source.LogError("ckan", "datastore_search_sql", err)
		return SearchResult{}, err
	}
	source.LogResponse("ckan", 200, time.Since(start), len(res.Records))
	return res, nil
}

func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (SearchResult, error) {
	var env envelope
	if err := c.http.GetJSON(ctx, endpoint, params, &env); err != nil {
		return SearchResult{}, err
	}
	if !env.Success {
		msg := string(env.Error)
		if msg == "" || msg == "null" {
			msg = "success=false"
		}
		return SearchResult{}, fmt.Errorf("%w: %s", ErrAPI, msg)
	}

	var res SearchResult
	dec := json.NewDecoder(bytes.NewReader(env.Result))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return SearchResult{}, fmt.Errorf("decode ckan result: %w", err)
	}
	return res, nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
