// Package inference talks to the configured model backend over HTTP and
// normalizes its response shapes into a single artifact result.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FormatWebUI marks stable-diffusion style backends that accept a JSON
// payload and return inline base64 images. Any other format sends the raw
// prompt text and expects pre-rendered paths.
const FormatWebUI = "webui"

// Result is the normalized output of one inference call.
type Result struct {
	// ArtifactPaths lists generated artifacts in output order.
	ArtifactPaths []string
	// Prompt echoes the user prompt the backend was called with.
	Prompt string
	// Seeds holds one seed per artifact; empty string when unknown.
	Seeds []string
}

// backendResponse covers the three shapes the backend may answer with.
type backendResponse struct {
	Images    []string `json:"images"`
	ImgPaths  []string `json:"imgPaths"`
	AudioPath string   `json:"audioPath"`
}

type pngInfoResponse struct {
	Info string `json:"info"`
}

// Client invokes an inference backend.
type Client struct {
	http      *http.Client
	outputDir string
}

// NewClient builds an inference client writing generated images under dir.
func NewClient(timeout time.Duration, dir string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		outputDir: dir,
	}
}

// BuildPayload assembles the request body for the backend. For webui
// backends the registration settings are merged with the prompt and the
// iteration count is forced to one so each call yields one image; other
// formats pass the prompt through untouched.
func BuildPayload(format, text string, settings map[string]interface{}, negativePrompt string) ([]byte, string, error) {
	if format != FormatWebUI {
		return []byte(text), "text/plain", nil
	}

	body := make(map[string]interface{}, len(settings)+2)
	for k, v := range settings {
		body[k] = v
	}
	if base, ok := settings["prompt"].(string); ok && base != "" {
		body["prompt"] = base + text
	} else {
		body["prompt"] = text
	}

	if negativePrompt != "" {
		if base, ok := body["negative_prompt"].(string); ok && base != "" {
			body["negative_prompt"] = base + " " + negativePrompt
		} else {
			body["negative_prompt"] = negativePrompt
		}
	}

	body["n_iter"] = 1

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode webui payload: %w", err)
	}
	return raw, "application/json", nil
}

// Run posts the payload to the backend and normalizes its answer. Inline
// base64 images are decoded to files and each gets a seed lookup; path
// responses pass through as-is.
func (c *Client) Run(ctx context.Context, url, format string, payload []byte, contentType, scriptID, text string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	if format == FormatWebUI {
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("inference call: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("inference call: unexpected status %d", res.StatusCode)
	}

	var parsed backendResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("inference call: decode: %w", err)
	}

	switch {
	case len(parsed.Images) > 0:
		return c.saveImages(ctx, url, scriptID, text, parsed.Images)
	case len(parsed.ImgPaths) > 0:
		return Result{ArtifactPaths: parsed.ImgPaths, Prompt: text}, nil
	case parsed.AudioPath != "":
		return Result{ArtifactPaths: []string{parsed.AudioPath}, Prompt: text}, nil
	default:
		return Result{}, fmt.Errorf("inference call: unrecognized response shape")
	}
}

// saveImages decodes inline images to disk and resolves per-image seeds.
func (c *Client) saveImages(ctx context.Context, url, scriptID, text string, images []string) (Result, error) {
	result := Result{Prompt: text}
	for i, img := range images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return Result{}, fmt.Errorf("decode image %d: %w", i, err)
		}
		path := filepath.Join(c.outputDir, fmt.Sprintf("output_%s_%d.png", scriptID, i))
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return Result{}, fmt.Errorf("write image %d: %w", i, err)
		}
		result.ArtifactPaths = append(result.ArtifactPaths, path)
		result.Seeds = append(result.Seeds, c.FetchSeed(ctx, url, img))
	}
	return result, nil
}

// FetchSeed asks the backend's info endpoint for the seed an image was
// generated with. The info string is human readable; the seed is the value
// between "Seed:" and the following comma. Any failure yields an empty
// seed rather than an error, matching the best-effort nature of the field.
func (c *Client) FetchSeed(ctx context.Context, url, imageB64 string) string {
	infoURL := strings.Replace(url, "/txt2img", "/png-info", 1)

	body, err := json.Marshal(map[string]string{
		"image": "data:image/png;base64," + imageB64,
	})
	if err != nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, infoURL, bytes.NewReader(body))
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return ""
	}
	defer res.Body.Close()

	var parsed pngInfoResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return ""
	}
	return ParseSeed(parsed.Info)
}

// ParseSeed extracts the seed value from a generation info string.
func ParseSeed(info string) string {
	start := strings.Index(info, "Seed:")
	if start < 0 {
		return ""
	}
	end := strings.Index(info[start:], ",")
	if end < 0 {
		return ""
	}
	seg := info[start : start+end]
	return strings.TrimSpace(strings.TrimPrefix(seg, "Seed:"))
}
