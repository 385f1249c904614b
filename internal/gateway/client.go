package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const findByTagsQuery = `query FindByTags($tags: [TagFilter!], $first: Int!, $after: String) {
  transactions(tags: $tags, first: $first, after: $after, sort: HEIGHT_DESC) {
    pageInfo { hasNextPage }
    edges {
      cursor
      node { id owner { address } tags { name value } block { height } }
    }
  }
}`

const findByTagsOwnersQuery = `query FindByTagsOwners($tags: [TagFilter!], $owners: [String!], $first: Int!) {
  transactions(tags: $tags, owners: $owners, first: $first, sort: HEIGHT_DESC) {
    pageInfo { hasNextPage }
    edges {
      cursor
      node { id owner { address } tags { name value } block { height } }
    }
  }
}`

const findByIDQuery = `query FindByID($id: ID!) {
  transactions(ids: [$id], first: 1, sort: HEIGHT_DESC) {
    edges {
      cursor
      node { id owner { address } tags { name value } block { height } }
    }
  }
}`

// Client talks to a ledger gateway: GraphQL for metadata queries and the
// plain data endpoint for transaction bodies.
type Client struct {
	graphqlURL string
	dataURL    string
	http       *http.Client
}

// New builds a gateway client. graphqlURL is the GraphQL endpoint, dataURL
// the base URL transaction bodies are served from.
func New(graphqlURL, dataURL string, timeout time.Duration) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		dataURL:    dataURL,
		http:       &http.Client{Timeout: timeout},
	}
}

// QueryByTags returns one page of transactions matching every filter,
// newest first. An empty after starts from the tip.
func (c *Client) QueryByTags(ctx context.Context, tags []TagFilter, first int, after string) (Page, error) {
	vars := map[string]interface{}{"tags": tags, "first": first}
	if after != "" {
		vars["after"] = after
	}
	return c.run(ctx, findByTagsQuery, vars)
}

// QueryByTagsOwned restricts the tag query to transactions signed by owner.
func (c *Client) QueryByTagsOwned(ctx context.Context, tags []TagFilter, owner string, first int) (Page, error) {
	vars := map[string]interface{}{"tags": tags, "owners": []string{owner}, "first": first}
	return c.run(ctx, findByTagsOwnersQuery, vars)
}

// GetTransaction fetches a single transaction by id. A nil result with a
// nil error means the gateway has no such transaction yet.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	page, err := c.run(ctx, findByIDQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(page.Edges) == 0 {
		return nil, nil
	}
	tx := page.Edges[0].Node
	return &tx, nil
}

// FetchBody reads the raw transaction body from the data endpoint.
func (c *Client) FetchBody(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.dataURL, id), nil)
	if err != nil {
		return "", err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch body %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch body %s: unexpected status %d", id, res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("fetch body %s: %w", id, err)
	}
	return string(body), nil
}

func (c *Client) run(ctx context.Context, query string, vars map[string]interface{}) (Page, error) {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return Page{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("gateway query: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("gateway query: unexpected status %d", res.StatusCode)
	}

	var parsed gqlResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Page{}, fmt.Errorf("gateway query: decode: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return Page{}, fmt.Errorf("gateway query: %s", parsed.Errors[0].Message)
	}
	return Page{
		Edges:       parsed.Data.Transactions.Edges,
		HasNextPage: parsed.Data.Transactions.PageInfo.HasNextPage,
	}, nil
}
