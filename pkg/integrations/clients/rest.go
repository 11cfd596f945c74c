package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 60 * time.Second

// APIError is returned when an upstream API answers with a non-2xx status.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.StatusCode, e.Body)
}

type authFunc func(req *http.Request)

func bearer(token string) authFunc {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// doJSON sends body (if any) as JSON and decodes the response into out (if any).
func doJSON(ctx context.Context, hc *http.Client, service, method, rawURL string, query url.Values, body any, auth authFunc, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", service, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		auth(req)
	}

	data, err := sendRaw(hc, service, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// sendRaw executes req and returns the response body. Non-2xx statuses
// become an *APIError carrying the first 4KB of the body.
func sendRaw(hc *http.Client, service string, req *http.Request) ([]byte, error) {
	log.Debug().Str("service", service).Str("method", req.Method).Str("path", req.URL.Path).Msg("api call")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return io.ReadAll(resp.Body)
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func getSlice(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if v, ok := r.(map[string]any); ok {
			out = append(out, v)
		}
	}
	return out
}
