package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type HTTPClient struct {
	Client  *http.Client
	BaseURL string
}

type Response struct {
	*http.Response
	Body []byte
}

// NewHTTPClient returns a client with its own cookie jar that never follows redirects.
func NewHTTPClient(t *testing.T, baseURL string) *HTTPClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &HTTPClient{
		Client: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		BaseURL: baseURL,
	}
}

func (r *Response) GetJSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

func (r *Response) GetString() string {
	return string(r.Body)
}

func (r *Response) AssertStatus(t *testing.T, expectedStatus int) {
	require.Equal(t, expectedStatus, r.StatusCode, "unexpected status code. Response: %s", r.GetString())
}

func (r *Response) AssertRedirect(t *testing.T, expectedLocation string) {
	require.True(t, r.StatusCode >= 300 && r.StatusCode < 400, "expected redirect status code, got %d", r.StatusCode)
	require.Equal(t, expectedLocation, r.Header.Get("Location"))
}

// Cookie returns the named cookie from the client's jar.
func (c *HTTPClient) Cookie(name string) *http.Cookie {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil
	}
	for _, cookie := range c.Client.Jar.Cookies(u) {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func (c *HTTPClient) Get(path string) (*Response, error) {
	return c.Request(http.MethodGet, path, nil)
}

func (c *HTTPClient) Post(path string, body interface{}) (*Response, error) {
	return c.Request(http.MethodPost, path, body)
}

func (c *HTTPClient) Request(method, path string, body interface{}) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Response: resp, Body: respBody}, nil
}
