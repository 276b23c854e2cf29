// Package directory talks to the external faculty directory and resource
// quota provider. Every failure is returned as an error; nothing defaults to
// an empty membership list or an unlimited quota.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

var (
	// ErrBadStatus is returned for a non-2xx response
	ErrBadStatus = errors.New("unexpected response status")
	// ErrEmptyBody is returned when a 2xx response has no usable body
	ErrEmptyBody = errors.New("empty response body")
	// ErrUnavailable is returned when the collaborator cannot be reached
	ErrUnavailable = errors.New("collaborator unavailable")
)

// FacultyDirectory resolves which faculties a user belongs to
type FacultyDirectory interface {
	ResolveFacultyMembership(ctx context.Context, userID string) ([]string, error)
}

// QuotaProvider returns the resource quota of a faculty for one day
type QuotaProvider interface {
	GetFacultyResource(ctx context.Context, faculty string, date time.Time) (model.Resources, error)
}

// facultyRequest is the body sent to the directory
type facultyRequest struct {
	NetID string `json:"netId"`
}

// facultyResponse accepts both a single faculty string and a list
type facultyResponse struct {
	Faculty *facultyList `json:"faculty"`
}

type facultyList []string

func (f *facultyList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("faculty must be a string or a list of strings: %w", err)
	}
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

// resourceResponse is the quota provider's body
type resourceResponse struct {
	CPU *int `json:"cpu"`
	GPU *int `json:"gpu"`
	Mem *int `json:"mem"`
}

// HTTPClient implements FacultyDirectory and QuotaProvider over HTTP
type HTTPClient struct {
	directoryURL string
	quotaURL     string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewHTTPClient creates a client for the directory and quota endpoints.
// Either address may be empty if the corresponding capability is unused.
func NewHTTPClient(directoryURL, quotaURL string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		directoryURL: strings.TrimRight(directoryURL, "/"),
		quotaURL:     strings.TrimRight(quotaURL, "/"),
		httpClient:   httpClient,
		logger:       logger,
	}
}

// ResolveFacultyMembership posts the user id to /faculty and returns its faculties
func (c *HTTPClient) ResolveFacultyMembership(ctx context.Context, userID string) ([]string, error) {
	body, err := json.Marshal(facultyRequest{NetID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal faculty request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.directoryURL+"/faculty", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build faculty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp facultyResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.Faculty == nil {
		return nil, fmt.Errorf("%w: faculty field missing", ErrEmptyBody)
	}

	c.logger.Debug("resolved faculty membership",
		slog.String("user", userID),
		slog.Any("faculties", []string(*resp.Faculty)),
	)

	return *resp.Faculty, nil
}

// GetFacultyResource reads the quota of a faculty for a day from /resources
func (c *HTTPClient) GetFacultyResource(ctx context.Context, faculty string, date time.Time) (model.Resources, error) {
	query := url.Values{}
	query.Set("faculty", faculty)
	query.Set("day", model.DayKey(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quotaURL+"/resources?"+query.Encode(), nil)
	if err != nil {
		return model.Resources{}, fmt.Errorf("failed to build resources request: %w", err)
	}

	var resp resourceResponse
	if err := c.do(req, &resp); err != nil {
		return model.Resources{}, err
	}
	if resp.CPU == nil || resp.GPU == nil || resp.Mem == nil {
		return model.Resources{}, fmt.Errorf("%w: resources body incomplete", ErrEmptyBody)
	}

	quota := model.Resources{CPU: *resp.CPU, GPU: *resp.GPU, Memory: *resp.Mem}
	if quota.IsNegative() {
		return model.Resources{}, fmt.Errorf("%w: negative quota %s", ErrEmptyBody, quota)
	}
	return quota, nil
}

// do executes the request and decodes a JSON body into out.
// A null or empty body is reported as ErrEmptyBody.
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ctxErr)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, context.DeadlineExceeded)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrBadStatus, req.Method, req.URL.Path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ctxErr)
		}
		return fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s %s", ErrEmptyBody, req.Method, req.URL.Path)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrEmptyBody, req.Method, req.URL.Path, err)
	}
	return nil
}

var (
	_ FacultyDirectory = (*HTTPClient)(nil)
	_ QuotaProvider    = (*HTTPClient)(nil)
)
