// Package jira retrieves project releases and fixed bug tickets from a Jira
// REST API and persists them as snapshots for offline runs.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/defectscope/pkg/release"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

// DefaultBaseURL is the Apache Software Foundation Jira.
const DefaultBaseURL = "https://issues.apache.org/jira"

// DefaultPageSize is the number of issues requested per search page.
const DefaultPageSize = 1000

const dateLayout = "2006-01-02"

// Sentinel errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrEmptyProject     = errors.New("project key is empty")
)

// Client talks to the Jira REST API v2.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPageSize sets the search page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a client for the Jira instance at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	const defaultTimeout = time.Minute

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type versionDTO struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate"`
}

type projectDTO struct {
	Versions []versionDTO `json:"versions"`
}

// Versions returns the project releases that carry both a name and a
// release date.
func (c *Client) Versions(ctx context.Context, project string) ([]release.Release, error) {
	if project == "" {
		return nil, ErrEmptyProject
	}

	var dto projectDTO

	err := c.get(ctx, "/rest/api/2/project/"+url.PathEscape(project), nil, &dto)
	if err != nil {
		return nil, fmt.Errorf("fetch versions of %s: %w", project, err)
	}

	out := make([]release.Release, 0, len(dto.Versions))

	for _, v := range dto.Versions {
		if v.Name == "" || v.ReleaseDate == "" {
			continue
		}

		date, parseErr := parseDate(v.ReleaseDate)
		if parseErr != nil {
			continue
		}

		out = append(out, release.Release{Name: v.Name, Date: date})
	}

	return out, nil
}

type issueFieldsDTO struct {
	Versions       []versionDTO `json:"versions"`
	Created        string       `json:"created"`
	ResolutionDate string       `json:"resolutiondate"`
}

type issueDTO struct {
	Key    string         `json:"key"`
	Fields issueFieldsDTO `json:"fields"`
}

type searchDTO struct {
	StartAt int        `json:"startAt"`
	Total   int        `json:"total"`
	Issues  []issueDTO `json:"issues"`
}

// BugQuery is the JQL selecting fixed bugs of a project.
func BugQuery(project string) string {
	return fmt.Sprintf(`project="%s" AND issueType="Bug" AND (status="closed" OR status="resolved") AND resolution="fixed"`, project)
}

// Issues pages through the project's fixed bugs. Tickets whose key or dates
// cannot be parsed are still returned with zero values so the classifier can
// report them.
func (c *Client) Issues(ctx context.Context, project string) ([]ticket.Ticket, error) {
	if project == "" {
		return nil, ErrEmptyProject
	}

	var out []ticket.Ticket

	for start := 0; ; {
		q := url.Values{}
		q.Set("jql", BugQuery(project))
		q.Set("fields", "key,versions,resolutiondate,created,fixVersions")
		q.Set("startAt", strconv.Itoa(start))
		q.Set("maxResults", strconv.Itoa(c.pageSize))

		var page searchDTO

		err := c.get(ctx, "/rest/api/2/search", q, &page)
		if err != nil {
			return nil, fmt.Errorf("search issues of %s at %d: %w", project, start, err)
		}

		for _, issue := range page.Issues {
			out = append(out, toTicket(issue))
		}

		start += len(page.Issues)

		if len(page.Issues) == 0 || start >= page.Total {
			return out, nil
		}
	}
}

func toTicket(issue issueDTO) ticket.Ticket {
	t := ticket.Ticket{Key: issue.Key, ID: KeyNumber(issue.Key)}

	t.Created, _ = parseDate(issue.Fields.Created)
	t.Resolved, _ = parseDate(issue.Fields.ResolutionDate)

	for _, v := range issue.Fields.Versions {
		if v.ReleaseDate != "" && v.Name != "" {
			t.AffectedReleases = append(t.AffectedReleases, v.Name)
		}
	}

	return t
}

// KeyNumber returns the numeric part of an issue key such as "PROJ-123", or
// 0 when the key has none.
func KeyNumber(key string) int {
	_, num, ok := strings.Cut(key, "-")
	if !ok {
		return 0
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}

	return n
}

// parseDate keeps the calendar day of a Jira date or timestamp.
func parseDate(s string) (time.Time, error) {
	day, _, _ := strings.Cut(s, "T")

	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}

	return t, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)

		return fmt.Errorf("%w: %s %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(dst)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
