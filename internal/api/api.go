package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoToken      = errors.New("login response carried no token")
)

// Error is a non-2xx response. Message is the server's "error" or
// "message" field when present.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// SignupRequest is the account form.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
}

// Validate applies the form rules the backend expects.
func (r SignupRequest) Validate() error {
	switch {
	case len(strings.TrimSpace(r.Username)) < 4:
		return fmt.Errorf("%w: username must be at least 4 characters", ErrInvalidInput)
	case len(r.Password) < 6:
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case r.Age < 1 || r.Age > 120:
		return fmt.Errorf("%w: age must be between 1 and 120", ErrInvalidInput)
	case r.Gender != "male" && r.Gender != "female":
		return fmt.Errorf("%w: gender must be male or female", ErrInvalidInput)
	}
	return nil
}

// Profile is the authenticated user's account.
type Profile struct {
	Username string         `json:"username"`
	Name     string         `json:"name"`
	Age      int            `json:"age"`
	Gender   string         `json:"gender"`
	Fields   map[string]any `json:"-"`
}

// Client talks to the trainer's account endpoints and holds the bearer
// token for the simulation socket.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates an API client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewPooledHTTPClient(4, timeout),
	}
}

// Token returns the current bearer token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a previously saved token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup creates an account. It does not log in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/signup", req, nil)
}

// Login exchanges credentials for a token, stores it and returns it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return "", err
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return "", ErrNoToken
	}
	c.SetToken(token)
	slog.Info("logged in", "username", username)
	return token, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var fields map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &fields); err != nil {
		return Profile{}, err
	}
	p := Profile{Fields: fields}
	p.Username, _ = fields["username"].(string)
	p.Name, _ = fields["name"].(string)
	p.Gender, _ = fields["gender"].(string)
	if age, ok := fields["age"].(float64); ok {
		p.Age = int(age)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func responseError(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}
