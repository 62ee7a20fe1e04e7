// Package crom crawls page metadata and sources from the Crom GraphQL API
// into the crawl database.
package crom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gocolly/colly"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"style_spider/internal/logging"
)

var reRateLimit = regexp.MustCompile(`(?:in|for) (\d+) seconds?`)

// Error is a non-empty GraphQL errors array.
type Error struct {
	Messages []string
	// RetryAfter is set when one of the messages is a rate limit notice.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if len(e.Messages) == 1 {
		return "crom: " + e.Messages[0]
	}
	return "crom: " + strings.Join(e.Messages, "; ")
}

func newError(errs gjson.Result) *Error {
	e := &Error{}
	errs.ForEach(func(_, item gjson.Result) bool {
		msg := item.Get("message").String()
		e.Messages = append(e.Messages, msg)
		if e.RetryAfter == 0 {
			if m := reRateLimit.FindStringSubmatch(msg); m != nil {
				secs, _ := strconv.Atoi(m[1])
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return true
	})
	return e
}

// Variable is a GraphQL placeholder inlined into the query text as JSON.
type Variable struct {
	Name  string
	Value any
}

// Client posts GraphQL queries to a Crom endpoint.
type Client struct {
	endpoint  string
	collector *colly.Collector
	log       *zap.Logger
}

type ClientOption func(*Client)

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.collector.SetRequestTimeout(d)
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.collector.UserAgent = ua
		}
	}
}

func NewClient(endpoint string, logger *zap.Logger, opts ...ClientOption) *Client {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)
	// GraphQL errors may come with a non-2xx status and still carry a body
	collector.ParseHTTPErrorResponse = true

	c := &Client{
		endpoint:  endpoint,
		collector: collector,
		log:       logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inline substitutes every variable into query.
func Inline(query string, vars []Variable) (string, error) {
	for _, v := range vars {
		encoded, err := json.Marshal(v.Value)
		if err != nil {
			return "", fmt.Errorf("crom: encode %s: %w", v.Name, err)
		}
		query = strings.ReplaceAll(query, v.Name, string(encoded))
	}
	return query, nil
}

// Query sends query and returns its data field. Rate limit errors are
// waited out and the request is sent again.
func (c *Client) Query(ctx context.Context, query string, vars []Variable) (gjson.Result, error) {
	query, err := Inline(query, vars)
	if err != nil {
		return gjson.Result{}, err
	}
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crom: encode payload: %w", err)
	}

	operation := func() (gjson.Result, error) {
		data, err := c.post(ctx, payload)
		var cromErr *Error
		if errors.As(err, &cromErr) && cromErr.RetryAfter > 0 {
			return data, backoff.RetryAfter(int(cromErr.RetryAfter / time.Second))
		}
		if err != nil {
			return data, backoff.Permanent(err)
		}
		return data, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			c.log.Info("Ratelimited, trying again", zap.Duration("after", wait))
		}),
	)
}

func (c *Client) post(ctx context.Context, payload []byte) (gjson.Result, error) {
	if err := ctx.Err(); err != nil {
		return gjson.Result{}, err
	}

	var (
		body   []byte
		status int
	)
	collector := c.collector.Clone()
	collector.ParseHTTPErrorResponse = true
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "application/json")

	reqErr := collector.Request(http.MethodPost, c.endpoint, bytes.NewReader(payload), nil, hdr)
	if body == nil && reqErr != nil {
		return gjson.Result{}, fmt.Errorf("crom: request: %w", reqErr)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("crom: invalid JSON response (status %d)", status)
	}
	parsed := gjson.ParseBytes(body)
	if errs := parsed.Get("errors"); errs.Exists() {
		return gjson.Result{}, newError(errs)
	}
	if status >= http.StatusBadRequest {
		return gjson.Result{}, fmt.Errorf("crom: unexpected status %d", status)
	}
	return parsed.Get("data"), nil
}
