// Package gateway is the ledger query collaborator: a thin GraphQL client
// over the public gateway, plus the domain queries the operator issues.
package gateway

import "github.com/fair-protocol/operator/internal/protocol"

// TagFilter matches transactions carrying a tag with any of the values.
type TagFilter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Owner identifies the wallet that signed a transaction.
type Owner struct {
	Address string `json:"address"`
}

// Block carries the confirmation height; nil for unconfirmed transactions.
type Block struct {
	Height int64 `json:"height"`
}

// Transaction is the read-only view of a ledger entry.
type Transaction struct {
	ID    string          `json:"id"`
	Owner Owner           `json:"owner"`
	Tags  protocol.TagSet `json:"tags"`
	Block *Block          `json:"block"`
}

// Edge pairs a transaction with its pagination cursor.
type Edge struct {
	Cursor string      `json:"cursor"`
	Node   Transaction `json:"node"`
}

// Page is one page of query results, newest first.
type Page struct {
	Edges       []Edge
	HasNextPage bool
}

// graphql wire envelope types.

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		Transactions struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			Edges []Edge `json:"edges"`
		} `json:"transactions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
