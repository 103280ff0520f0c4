// Package subgraph lists known projects from the protocol's GraphQL indexer.
package subgraph

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/juicescan/internal/httputil"
)

// ProjectsQuery lists every indexed project id.
const ProjectsQuery = "{ projects { projectId } }"

// ErrGraphQL wraps errors reported in a GraphQL response body.
var ErrGraphQL = errors.New("graphql error")

// Project is one indexed project.
type Project struct {
	ID *big.Int `json:"projectId"`
}

// Lister lists projects.
type Lister interface {
	Projects(ctx context.Context) ([]Project, error)
}

// Client queries a subgraph endpoint.
type Client struct {
	http *httputil.Client
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{http: httputil.NewClient(httputil.ClientConfig{BaseURL: endpoint, Timeout: timeout})}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

// Projects runs ProjectsQuery. Results are sorted by id.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	body, err := c.http.Post(ctx, "", graphQLRequest{Query: ProjectsQuery})
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return ParseProjects(body)
}

// ParseProjects decodes a projects query response.
func ParseProjects(body []byte) ([]Project, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("query projects: invalid JSON response")
	}
	res := gjson.ParseBytes(body)

	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		var msgs []string
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}

	list := res.Get("data.projects")
	if !list.IsArray() {
		return nil, fmt.Errorf("query projects: missing data.projects")
	}

	projects := make([]Project, 0, len(list.Array()))
	for _, item := range list.Array() {
		raw := item.Get("projectId")
		id, ok := new(big.Int).SetString(raw.String(), 10)
		if !ok || id.Sign() < 0 {
			return nil, fmt.Errorf("query projects: invalid projectId %q", raw.Raw)
		}
		projects = append(projects, Project{ID: id})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID.Cmp(projects[j].ID) < 0 })
	return projects, nil
}
