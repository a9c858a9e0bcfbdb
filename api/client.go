package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	C "github.com/Dreamacro/clash-dashboard/constant"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 20 * time.Second
)

// StatusError is returned for controller responses outside 2xx
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client talks to Clash-compatible external controllers
type Client struct {
	httpClient *http.Client
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				Proxy: nil,
				DialContext: (&net.Dialer{
					Timeout: dialTimeout,
				}).DialContext,
			},
		}
	}
	return &Client{httpClient: httpClient}
}

// do sends a request and hands the body of a 2xx response to handle
func (c *Client) do(ctx context.Context, cfg C.APIConfig, method, path string, handle func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL(path), nil)
	if err != nil {
		return err
	}
	if cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, path, resp)
	}

	if handle == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return handle(resp.Body)
}

func newStatusError(method, path string, resp *http.Response) *StatusError {
	e := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}

	buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	body := struct {
		Message string `json:"message"`
	}{}
	if json.Unmarshal(buf, &body) == nil && body.Message != "" {
		e.Message = body.Message
	} else {
		e.Message = strings.TrimSpace(string(buf))
	}
	return e
}
