package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/session"
	"go.uber.org/zap"
)

// Doer sends one authorized request. *session.Manager satisfies it.
type Doer interface {
	Do(ctx context.Context, req session.Request) (*http.Response, error)
}

type Client struct {
	doer Doer
	log  *zap.Logger
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(doer Doer, opts ...Option) *Client {
	c := &Client{doer: doer, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Doer = (*session.Manager)(nil)

func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	req := session.Request{Method: method, Path: path, Query: query}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.Body = body
	}
	return c.send(ctx, req, out)
}

func (c *Client) send(ctx context.Context, req session.Request, out interface{}) error {
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Op: req.Method, URL: req.Path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, body)
		c.log.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// list fetches a collection that may come back as a bare array or as a
// paginated {"results": [...]} envelope.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

// uploadImage posts a single file under the "image" form field.
func (c *Client) uploadImage(ctx context.Context, path, filename string, r io.Reader) (*domain.Image, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var img domain.Image
	req := session.Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	}
	if err := c.send(ctx, req, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// parseAPIError understands {"detail": "..."}, field maps and bare message
// lists.
func parseAPIError(status int, body []byte) *domain.APIError {
	apiErr := &domain.APIError{Status: status, Body: body}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}

	var messages []string
	if err := json.Unmarshal(trimmed, &messages); err == nil {
		apiErr.Detail = strings.Join(messages, " ")
		return apiErr
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return apiErr
	}
	if d, ok := raw["detail"]; ok {
		var detail string
		if json.Unmarshal(d, &detail) == nil {
			apiErr.Detail = detail
			return apiErr
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var msgs []string
		if json.Unmarshal(raw[k], &msgs) != nil {
			var single string
			if json.Unmarshal(raw[k], &single) != nil {
				continue
			}
			msgs = []string{single}
		}
		msg := strings.Join(msgs, " ")
		if k == "non_field_errors" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, k+": "+msg)
	}
	apiErr.Detail = strings.Join(parts, "; ")
	return apiErr
}
