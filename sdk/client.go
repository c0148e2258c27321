// Package sdk is a Go client for the API.
package sdk

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Response is the envelope the API answers with. ResponseData is kept raw so
// callers can decode it into their own types.
type Response struct {
	Reason       *string         `json:"reason"`
	Message      string          `json:"message,omitempty"`
	Amount       *int            `json:"amount,omitempty"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
	// Status is the HTTP status code.
	Status int `json:"-"`
}

// Success reports whether the response carries no reason.
func (r *Response) Success() bool { return r.Reason == nil }

// ReasonString returns the reason, or "" on success.
func (r *Response) ReasonString() string {
	if r.Reason == nil {
		return ""
	}
	return *r.Reason
}

// Decode unmarshals the response data into v.
func (r *Response) Decode(v any) error {
	if len(r.ResponseData) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.ResponseData, v)
}

// Session is what login and registerUser return.
type Session struct {
	Token           int64 `json:"token"`
	PermissionLevel int   `json:"permissionLevel"`
}

// Client sends requests to one API server. After Login every request carries
// the session credentials.
type Client struct {
	baseURL string
	http    *http.Client

	username string
	session  Session
}

// NewClient creates a client for baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// HashPassword returns the hex SHA-512 digest the server expects as password.
func HashPassword(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Session returns the credentials of the last successful login.
func (c *Client) Session() Session { return c.session }

// Do sends requestType with data as requestData.
func (c *Client) Do(ctx context.Context, requestType string, data any) (*Response, error) {
	body := map[string]any{"requestType": requestType}
	if c.username != "" {
		body["username"] = c.username
		body["token"] = c.session.Token
	}
	if data != nil {
		body["requestData"] = data
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", requestType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", requestType, err)
	}
	defer res.Body.Close()

	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %w", requestType, res.StatusCode, err)
	}
	resp.Status = res.StatusCode
	return &resp, nil
}

// Login authenticates and keeps the session for later requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "login", username, password)
}

// Register creates an account and keeps its session.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "registerUser", username, password)
}

func (c *Client) authenticate(ctx context.Context, requestType, username, password string) error {
	c.username = ""
	resp, err := c.Do(ctx, requestType, map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("%s: %s %s", requestType, resp.ReasonString(), resp.Message)
	}
	var s Session
	if err := resp.Decode(&s); err != nil {
		return fmt.Errorf("%s: %w", requestType, err)
	}
	c.username = username
	c.session = s
	return nil
}

// Logout ends the session on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	if c.username == "" {
		return nil
	}
	resp, err := c.Do(ctx, "logout", nil)
	c.username = ""
	c.session = Session{}
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("logout: %s", resp.ReasonString())
	}
	return nil
}
