// Package bundlr publishes artifacts to the ledger through a bundler node
// and registers uploaded artifacts as tokens on the contract gateway. Both
// collaborators are narrow interfaces so the pipeline can be exercised
// without the network.
package bundlr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fair-protocol/operator/internal/protocol"
)

// Uploader publishes a payload with an ordered tag list and returns the
// resulting transaction id.
type Uploader interface {
	UploadFile(ctx context.Context, path string, tags protocol.TagSet) (string, error)
	UploadData(ctx context.Context, data []byte, tags protocol.TagSet) (string, error)
}

// Registrar mints the on-chain token for an uploaded artifact.
type Registrar interface {
	Register(ctx context.Context, artifactID string) (string, error)
}

// Client is the HTTP implementation of both collaborators.
type Client struct {
	nodeURL     string
	registryURL string
	// registerProvider must name the same bundler node the data was
	// uploaded through or the token registration is rejected.
	registerProvider string
	http             *http.Client
}

// NewClient builds a bundler client against the given node and contract
// registry endpoints.
func NewClient(nodeURL, registryURL, registerProvider string, timeout time.Duration) *Client {
	return &Client{
		nodeURL:          nodeURL,
		registryURL:      registryURL,
		registerProvider: registerProvider,
		http:             &http.Client{Timeout: timeout},
	}
}

type uploadRequest struct {
	Data string          `json:"data"`
	Tags protocol.TagSet `json:"tags"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

type registerRequest struct {
	ID               string `json:"id"`
	RegisterProvider string `json:"registerProvider"`
}

type registerResponse struct {
	ContractTxID string `json:"contractTxId"`
}

// UploadFile reads a local artifact and publishes it.
func (c *Client) UploadFile(ctx context.Context, path string, tags protocol.TagSet) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}
	return c.UploadData(ctx, data, tags)
}

// UploadData publishes raw bytes with the given tags.
func (c *Client) UploadData(ctx context.Context, data []byte, tags protocol.TagSet) (string, error) {
	payload, err := json.Marshal(uploadRequest{
		Data: base64.StdEncoding.EncodeToString(data),
		Tags: tags,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/tx", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload: unexpected status %d", res.StatusCode)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("upload: decode: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("upload: node returned no transaction id")
	}
	return parsed.ID, nil
}

// Register asks the contract registry to mint a token for the artifact.
func (c *Client) Register(ctx context.Context, artifactID string) (string, error) {
	payload, err := json.Marshal(registerRequest{ID: artifactID, RegisterProvider: c.registerProvider})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.registryURL+"/contracts/register", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("register token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("register token: unexpected status %d", res.StatusCode)
	}

	var parsed registerResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("register token: decode: %w", err)
	}
	return parsed.ContractTxID, nil
}
