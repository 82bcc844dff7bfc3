package options

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-matricula/pkg/form"
)

// DefaultTimeout bounds a single option request.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// HTTP fetches options from a JSON endpoint.
type HTTP struct {
	endpoint Endpoint
	client   *http.Client
	baseURL  *url.URL
	token    func() string
	headers  http.Header
}

// HTTPOption customizes an HTTP fetcher.
type HTTPOption func(*HTTP)

// WithClient sets the HTTP client. Its timeout is left as configured.
func WithClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if h == nil || client == nil {
			return
		}
		h.client = client
	}
}

// WithTimeout replaces the client timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if h == nil || timeout <= 0 {
			return
		}
		clone := *h.client
		clone.Timeout = timeout
		h.client = &clone
	}
}

// WithBaseURL resolves relative endpoint URLs against base.
func WithBaseURL(base string) HTTPOption {
	return func(h *HTTP) {
		if h == nil {
			return
		}
		parsed, err := url.Parse(strings.TrimSpace(base))
		if err != nil || parsed.Scheme == "" {
			return
		}
		h.baseURL = parsed
	}
}

// WithCSRFToken supplies the token sent in the endpoint's CSRF header.
func WithCSRFToken(token func() string) HTTPOption {
	return func(h *HTTP) {
		if h == nil {
			return
		}
		h.token = token
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		if h == nil || key == "" {
			return
		}
		h.headers.Add(key, value)
	}
}

// NewHTTP builds a fetcher for endpoint.
func NewHTTP(endpoint Endpoint, opts ...HTTPOption) (*HTTP, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	h := &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Endpoint returns the endpoint configuration.
func (h *HTTP) Endpoint() Endpoint { return h.endpoint }

// Fetch performs the request and decodes the option list.
func (h *HTTP) Fetch(ctx context.Context, req Request) ([]form.Option, error) {
	httpReq, err := h.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("options: fetch %s: %w", httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("options: read %s: %w", httpReq.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError{
			Code: resp.StatusCode,
			Err:  fmt.Errorf("options: fetch %s: %s", httpReq.URL.Path, resp.Status),
		}
	}
	opts, err := Decode(body, h.endpoint.ResultsPath, h.endpoint.Mapping)
	if err != nil {
		return nil, fmt.Errorf("options: decode %s: %w", httpReq.URL.Path, err)
	}
	return opts, nil
}

func (h *HTTP) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	raw := expand(h.endpoint.URL, req, url.PathEscape)
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("options: endpoint url %q: %w", raw, err)
	}
	if h.baseURL != nil {
		target = h.baseURL.ResolveReference(target)
	}

	params := url.Values{}
	merged := h.endpoint.params(req)
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		params.Set(key, merged[key])
	}

	method := h.endpoint.method()
	var body io.Reader
	if method == http.MethodGet {
		query := target.Query()
		for key, values := range params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		target.RawQuery = query.Encode()
	} else {
		body = bytes.NewBufferString(params.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("options: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if h.endpoint.CSRFHeader != "" && h.token != nil {
			httpReq.Header.Set(h.endpoint.CSRFHeader, h.token())
		}
	}
	for key, values := range h.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

// Decode extracts options from an endpoint payload. The list is taken from
// resultsPath (dot separated) when given, otherwise from a bare array or the
// first known envelope key. A success:false envelope becomes an error.
func Decode(body []byte, resultsPath string, mapping Mapping) ([]form.Option, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrUnexpectedPayload
	}

	var list []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
	} else {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		if err := envelopeFailure(envelope); err != nil {
			return nil, err
		}
		raw, err := locateList(envelope, resultsPath)
		if err != nil {
			return nil, err
		}
		if raw == nil || string(raw) == "null" {
			return nil, nil
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: results are not a list", ErrUnexpectedPayload)
		}
	}

	out := make([]form.Option, 0, len(list))
	for _, item := range list {
		opt, err := decodeItem(item, mapping)
		if err != nil {
			return nil, err
		}
		out = append(out, opt)
	}
	return form.NormalizeOptions(out), nil
}

func envelopeFailure(envelope map[string]json.RawMessage) error {
	raw, ok := envelope["success"]
	if !ok {
		return nil
	}
	var success bool
	if err := json.Unmarshal(raw, &success); err != nil || success {
		return nil
	}
	var message string
	_ = json.Unmarshal(envelope["error"], &message)
	if message == "" {
		return ErrServerFailure
	}
	return fmt.Errorf("%w: %s", ErrServerFailure, message)
}

func locateList(envelope map[string]json.RawMessage, path string) (json.RawMessage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		for _, key := range envelopeKeys {
			if raw, ok := envelope[key]; ok {
				return raw, nil
			}
		}
		return nil, ErrUnexpectedPayload
	}

	current := envelope
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		raw, ok := current[segment]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrUnexpectedPayload, path)
		}
		if i == len(segments)-1 {
			return raw, nil
		}
		var next map[string]json.RawMessage
		if err := json.Unmarshal(raw, &next); err != nil {
			return nil, fmt.Errorf("%w: %q is not an object", ErrUnexpectedPayload, segment)
		}
		current = next
	}
	return nil, ErrUnexpectedPayload
}

func decodeItem(item json.RawMessage, mapping Mapping) (form.Option, error) {
	if mapping.Value == "" && mapping.Label == "" {
		var opt form.Option
		if err := json.Unmarshal(item, &opt); err != nil {
			return form.Option{}, err
		}
		return opt, nil
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return form.Option{}, fmt.Errorf("options: decode item: %w", err)
	}
	var fallback form.Option
	if err := json.Unmarshal(item, &fallback); err != nil && !errors.Is(err, io.EOF) {
		return form.Option{}, err
	}
	opt := fallback
	if mapping.Value != "" {
		opt.Value = scalar(fields[mapping.Value])
	}
	if mapping.Label != "" {
		opt.Label = scalar(fields[mapping.Label])
	}
	return opt, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
