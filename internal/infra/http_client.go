package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
)

type HttpClient struct {
	Client *http.Client
}

type Request struct {
	Url     string
	Headers map[string]string
}

type PostRequest struct {
	Request
	Entity any
}

func NewHttpClient(timeout time.Duration) *HttpClient {

	dt := http.DefaultTransport
	transport := dt.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = time.Duration(30) * time.Second
	transport.MaxIdleConns = transport.MaxIdleConnsPerHost * 2
	return &HttpClient{
		Client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// GetRaw fetches req.Url and returns the body as is.
func (c *HttpClient) GetRaw(ctx context.Context, req Request) ([]byte, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Url, nil)
	if err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to create request"),
			failure.Context{"url": req.Url},
		)
	}
	return c.do(r, req.Headers, nil)
}

// Get fetches req.Url and decodes the json body into expected.
func (c *HttpClient) Get(ctx context.Context, req Request, expected any) error {
	body, err := c.GetRaw(ctx, req)
	if err != nil {
		return err
	}
	return decode(body, expected, failure.Context{"url": req.Url})
}

// Post sends req.Entity as json and decodes the json response into expected.
func (c *HttpClient) Post(ctx context.Context, req PostRequest, expected any) error {
	encoded, err := json.Marshal(req.Entity)
	if err != nil {
		return failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to encode request entity"),
			failure.Context{
				"url":    req.Url,
				"entity": fmt.Sprintf("%+v", req.Entity),
			},
		)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Url, bytes.NewBuffer(encoded))
	if err != nil {
		return failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to create request"),
			failure.Context{
				"url": req.Url,
				"req": string(encoded),
			},
		)
	}
	r.Header.Set("Content-Type", "application/json")

	body, err := c.do(r, req.Headers, encoded)
	if err != nil {
		return err
	}
	return decode(body, expected, failure.Context{"url": req.Url, "req": string(encoded)})
}

func (c *HttpClient) do(r *http.Request, headers map[string]string, payload []byte) ([]byte, error) {
	for k, v := range headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	fields := failure.Context{"url": r.URL.String()}
	if payload != nil {
		fields["req"] = string(payload)
	}

	res, err := c.Client.Do(r)
	if err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrUnavailable,
			failure.Message("upstream service unavailable"),
			fields,
		)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		fields["code"] = fmt.Sprintf("%d", res.StatusCode)
		return nil, failure.New(
			errors.ErrUnavailable,
			failure.Message("unexpected status code from upstream service"),
			fields,
		)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrUnavailable,
			failure.Message("failed to read response body"),
			fields,
		)
	}
	return body, nil
}

func decode(body []byte, expected any, fields failure.Context) error {
	if err := json.Unmarshal(body, expected); err != nil {
		return failure.Translate(
			err,
			errors.ErrUnavailable,
			failure.Message("failed to decode response body"),
			fields,
		)
	}
	return nil
}
