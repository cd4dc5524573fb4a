// Package apiclient is a credentialed JSON client for the carpool API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"carpool-service/internal/carbon"
	"carpool-service/internal/users"
	"carpool-service/pkg/jwt"
)

// PatchTimeout bounds a profile picture PATCH.
const PatchTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// StatusCode returns the HTTP status of the failed call.
func (e *StatusError) StatusCode() int { return e.Status }

// Client talks to the API with a cookie jar, so the session cookie set on
// login is sent with every later request.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for baseURL.
func New(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{base: base, http: &http.Client{Jar: jar}}, nil
}

// SetToken installs a previously issued session token in the cookie jar.
func (c *Client) SetToken(token string) {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: jwt.CookieName, Value: token, Path: "/"}})
}

// Login authenticates and keeps the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*users.AuthResponse, error) {
	var out users.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/users/login", users.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// GetUser fetches a profile document.
func (c *Client) GetUser(ctx context.Context, id string) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetCarbonSavings fetches the weekly and monthly savings of a user.
func (c *Client) GetCarbonSavings(ctx context.Context, id string) (*carbon.Savings, error) {
	var s carbon.Savings
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id)+"/carbon-savings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateProfile PATCHes the profile and returns the updated document.
func (c *Client) UpdateProfile(ctx context.Context, id string, req users.UpdateRequest) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(id), req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteRide deletes a ride the caller created.
func (c *Client) DeleteRide(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/rides/"+url.PathEscape(id), nil, nil)
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: path})
}

// Cookies returns the cookies the jar holds for the API.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage pulls a human message out of {"message"}, {"error":"..."} or
// {"error":{"message"}} bodies.
func errorMessage(r io.Reader) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 1<<16)).Decode(&body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	var s string
	if json.Unmarshal(body.Error, &s) == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var se interface{ StatusCode() int }
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsOffline reports whether err means the network could not be reached at all.
func IsOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
