package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wifeyapp/appgate/internal/models"
)

// DefaultTimeout bounds every request. Timeouts are transient failures,
// never equivalent to a 404.
const DefaultTimeout = 12 * time.Second

// HTTPClient is the Client implementation over the server's HTTP/JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, bearer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *HTTPClient) FetchUser(ctx context.Context, id int64) (*models.UserRecord, error) {
	resp, err := c.get(ctx, "/users/me?userId="+strconv.FormatInt(id, 10), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		User *models.UserRecord `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed user body: %v", ErrUnavailable, err)
	}
	if body.User == nil {
		return nil, fmt.Errorf("%w: user body missing user", ErrUnavailable)
	}
	return body.User, nil
}

func (c *HTTPClient) FetchProfile(ctx context.Context, id int64) (*ProfileResult, error) {
	resp, err := c.get(ctx, "/profile/me?userId="+strconv.FormatInt(id, 10), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Profile *models.ProfileRecord `json:"profile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed profile body: %v", ErrUnavailable, err)
	}
	return &ProfileResult{Profile: body.Profile}, nil
}

func (c *HTTPClient) EnsureUser(ctx context.Context, bearer string) (*models.UserRecord, error) {
	resp, err := c.get(ctx, "/users/ensure", bearer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		User *models.UserRecord `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed ensure body: %v", ErrUnavailable, err)
	}
	if body.User == nil || body.User.ID == 0 {
		return nil, fmt.Errorf("%w: ensure body missing usable user id", ErrUnavailable)
	}
	return body.User, nil
}
