package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cblerrors "cblcrawl/pkg/errors"
	"cblcrawl/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const bodyPreviewLimit = 200

// Options configures a Client
type Options struct {
	Endpoint string
	// Field is the top-level connection field selected by Query, e.g. "bans"
	Field     string
	Query     string
	Timeout   time.Duration
	UserAgent string
	Token     string

	HTTPClient *http.Client
	Tracer     trace.Tracer
	Logger     logger.Logger
}

// Client posts one paginated connection query per Fetch call
type Client struct {
	endpoint   string
	field      string
	query      string
	userAgent  string
	token      string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     logger.Logger
}

// NewClient creates a client for a single connection query
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("cblcrawl/graphql")
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		endpoint:   opts.Endpoint,
		field:      opts.Field,
		query:      opts.Query,
		userAgent:  opts.UserAgent,
		token:      opts.Token,
		httpClient: httpClient,
		tracer:     tracer,
		logger:     log.WithField("component", "graphql"),
	}
}

// Fetch requests the page that follows cursor after. Failures are returned as
// *errors.Error; Fetch never retries.
func (c *Client) Fetch(ctx context.Context, after *string, first int) (*Page, error) {
	ctx, span := c.tracer.Start(ctx, "graphql.fetch",
		trace.WithAttributes(
			attribute.String("field", c.field),
			attribute.String("cursor", cursorOrNone(after)),
			attribute.Int("first", first),
		))
	defer span.End()

	page, err := c.fetch(ctx, after, first)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("edges", len(page.Edges)),
		attribute.Bool("has_next_page", page.HasNextPage),
		attribute.String("end_cursor", cursorOrNone(page.EndCursor)),
	)
	span.SetStatus(codes.Ok, "page fetched")
	return page, nil
}

func (c *Client) fetch(ctx context.Context, after *string, first int) (*Page, error) {
	body, err := json.Marshal(request{
		Query:     c.query,
		Variables: Variables{After: after, First: first},
	})
	if err != nil {
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeUnknown, 0, err, "failed to marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeUnknown, 0, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("GraphQL request failed", map[string]interface{}{
			"url":      c.endpoint,
			"duration": time.Since(start),
		})
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeNetwork, 0, err, "network error")
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, c.endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, cblerrors.FromStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeNetwork, resp.StatusCode, err, "failed to read response body")
	}

	page, perr := c.decode(data)
	if perr != nil {
		perr.Code = resp.StatusCode
		c.logger.DebugWithFields("Undecodable GraphQL response", map[string]interface{}{
			"body_preview": preview(data),
		})
		return nil, perr
	}
	return page, nil
}

func (c *Client) decode(data []byte) (*Page, *cblerrors.Error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeParsing, 0, err, "failed to parse response")
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, cblerrors.New(cblerrors.ErrorTypeParsing, 0, "graphql errors: "+strings.Join(msgs, "; "))
	}

	raw, ok := resp.Data[c.field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, cblerrors.New(cblerrors.ErrorTypeParsing, 0, fmt.Sprintf("response has no data.%s", c.field))
	}

	var conn connection
	if err := json.Unmarshal(raw, &conn); err != nil {
		return nil, cblerrors.Wrap(cblerrors.ErrorTypeParsing, 0, err, fmt.Sprintf("failed to parse data.%s", c.field))
	}
	if conn.PageInfo == nil {
		return nil, cblerrors.New(cblerrors.ErrorTypeParsing, 0, fmt.Sprintf("data.%s has no pageInfo", c.field))
	}

	page := &Page{
		Edges:       make([]json.RawMessage, 0, len(conn.Edges)),
		HasNextPage: conn.PageInfo.HasNextPage,
		EndCursor:   conn.PageInfo.EndCursor,
	}
	for i, edge := range conn.Edges {
		node := bytes.TrimSpace(edge.Node)
		if len(node) == 0 || bytes.Equal(node, []byte("null")) {
			return nil, cblerrors.New(cblerrors.ErrorTypeParsing, 0, fmt.Sprintf("data.%s edge %d has no node", c.field, i))
		}
		page.Edges = append(page.Edges, edge.Node)
	}
	return page, nil
}

func preview(data []byte) string {
	if len(data) > bodyPreviewLimit {
		return string(data[:bodyPreviewLimit]) + "..."
	}
	return string(data)
}

func cursorOrNone(cursor *string) string {
	if cursor == nil {
		return "none"
	}
	return *cursor
}
