package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client talks to a BI server. It is bound to one server URL and one set of
// basic-auth credentials for its whole lifetime.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	transport.TLSHandshakeTimeout = timeout
	// NOTE: Do not set ResponseHeaderTimeout here.
	// Schema uploads can keep the server busy for a long time before it answers.
	// The client-side timeout only applies to reaching the server (dial/TLS).

	return &Client{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Transport: transport,
		},
		Timeout: timeout,
	}
}

// Field is one part of a multipart form. Parts with a FileName are sent as
// file uploads and read from Content; the others carry Value.
type Field struct {
	Name     string
	Value    string
	FileName string
	Content  io.Reader
}

type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("API error: status=%d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: status=%d", e.Status)
}

// IsNotFound reports whether err is an ApiError carrying HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *ApiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Status checks that the server answers an authenticated repository request.
func (c *Client) Status(ctx context.Context) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	_, err := c.Get(ctx, "api/repo/files/children?depth=0")
	return err
}

// URL joins path onto the base server URL.
func (c *Client) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Get fetches path and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// PostJSON posts body encoded as JSON and returns the response body.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// PostMultipart posts a multipart form. Unlike the other helpers it does not
// turn HTTP error statuses into errors: the status code is returned to the
// caller, and err is only set when the server could not be reached.
func (c *Client) PostMultipart(ctx context.Context, path string, fields []Field) (int, []byte, error) {
	req, err := c.multipartRequest(ctx, http.MethodPost, path, fields)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// PutMultipart sends a multipart form with PUT and returns the response body.
func (c *Client) PutMultipart(ctx context.Context, path string, fields []Field) ([]byte, error) {
	req, err := c.multipartRequest(ctx, http.MethodPut, path, fields)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) multipartRequest(ctx context.Context, method, path string, fields []Field) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if f.FileName != "" {
			part, err := w.CreateFormFile(f.Name, f.FileName)
			if err != nil {
				return nil, err
			}
			if f.Content != nil {
				if _, err := io.Copy(part, f.Content); err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", f.FileName, err)
				}
			}
			continue
		}
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	return c.HTTPClient.Do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &ApiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
