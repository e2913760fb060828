package anaplan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gridplan/gridplan/pkg/models"
)

const (
	defaultAuthURL = "https://auth.anaplan.com/token/authenticate"
	defaultAPIBase = "https://api.anaplan.com/2/0"

	requestTimeout = 60 * time.Second
)

// client wraps the Anaplan REST API v2 with token handling. The zero token
// means not connected; every request, including re-reads after a
// disconnect, checks it.
type client struct {
	http    *http.Client
	authURL string
	baseURL string

	mu    sync.RWMutex
	token string
}

func newClient(authURL, baseURL string, httpClient *http.Client) *client {
	if authURL == "" {
		authURL = defaultAuthURL
	}
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &client{http: httpClient, authURL: authURL, baseURL: baseURL}
}

func (c *client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *client) connected() bool { return c.currentToken() != "" }

// authenticate exchanges basic credentials for an API token.
func (c *client) authenticate(ctx context.Context, email, password string) error {
	body, _ := json.Marshal(map[string]string{"purpose": "planning-ux"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return &models.UpstreamError{Op: "authenticate", Err: err}
	}
	req.SetBasicAuth(email, password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.UpstreamError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &models.UpstreamError{Op: "authenticate", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		TokenInfo struct {
			TokenValue string `json:"tokenValue"`
		} `json:"tokenInfo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &models.UpstreamError{Op: "authenticate", Err: err}
	}
	if out.TokenInfo.TokenValue == "" {
		return &models.UpstreamError{Op: "authenticate", Err: fmt.Errorf("no token in response")}
	}
	c.setToken(out.TokenInfo.TokenValue)
	return nil
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *client) get(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.UpstreamError{Op: "GET " + path, Err: err}
	}
	return nil
}

// getRaw performs an authenticated GET and returns the body verbatim, used
// for export chunk downloads.
func (c *client) getRaw(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, "text/csv")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// post performs an authenticated POST with a JSON body and decodes the
// response into out when out is non-nil.
func (c *client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &models.UpstreamError{Op: "POST " + path, Err: err}
	}
	body, err := c.do(ctx, http.MethodPost, path, payload, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.UpstreamError{Op: "POST " + path, Err: err}
	}
	return nil
}

func (c *client) do(ctx context.Context, method, path string, payload []byte, accept string) ([]byte, error) {
	op := method + " " + path

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &models.UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "AnaplanAuthToken "+c.currentToken())
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &models.UpstreamError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.UpstreamError{Op: op, Err: err}
	}
	return out, nil
}
