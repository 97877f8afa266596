package apitool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

// defaultCallTimeout is the per-call HTTP timeout when a tool does not
// override it.
const defaultCallTimeout = 30 * time.Second

// maxRedirects bounds HTTP redirect following.
const maxRedirects = 5

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultCallTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// renderedRequest is the fully interpolated outbound request, ready to
// dispatch.
type renderedRequest struct {
	url     string
	method  string
	headers map[string]string
	query   map[string]string
	body    any
}

// renderRequest interpolates {{data.x}}/{{env.X}} across the API request
// template.
func renderRequest(api config.APIRequestConfig, env func(string) (string, bool), data map[string]any) (*renderedRequest, error) {
	r := &renderer{data: data, env: env}

	renderedURL, err := r.renderString(api.URL)
	if err != nil {
		return nil, err
	}
	headers, err := r.renderMap(api.Headers)
	if err != nil {
		return nil, err
	}
	query, err := r.renderMap(api.QueryParams)
	if err != nil {
		return nil, err
	}
	body, err := r.renderBody(api.Body)
	if err != nil {
		return nil, err
	}

	return &renderedRequest{
		url:     renderedURL,
		method:  string(api.Method),
		headers: headers,
		query:   query,
		body:    body,
	}, nil
}

type httpOutcome struct {
	status      int
	contentType string
	body        []byte
}

// execute performs the HTTP call described by rr.
func execute(ctx context.Context, client *http.Client, rr *renderedRequest) (*httpOutcome, error) {
	fullURL := rr.url
	if len(rr.query) > 0 {
		u, err := url.Parse(rr.url)
		if err != nil {
			return nil, fmt.Errorf("invalid request url: %w", err)
		}
		q := u.Query()
		for k, v := range rr.query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	bodyReader, contentType, err := encodeBody(rr.body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, rr.method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range rr.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &httpOutcome{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// encodeBody turns a rendered body value into an io.Reader + Content-Type.
// A raw string template passes its content type through untouched; a
// structured object is JSON-encoded.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if v == "" {
			return nil, "", nil
		}
		ct := "text/plain"
		if strings.HasPrefix(strings.TrimSpace(v), "{") || strings.HasPrefix(strings.TrimSpace(v), "[") {
			ct = "application/json"
		}
		return strings.NewReader(v), ct, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}
