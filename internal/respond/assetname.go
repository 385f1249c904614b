package respond

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// titleHashLen is how much of the digest lands in a synthesized title.
const titleHashLen = 10

// ResolveTitle picks the display title for the artifact at idx. A caller
// supplied asset-name list wins, wrapping by modulo when the index runs
// past it; otherwise the title is synthesized from a deterministic hash of
// the request id and index, so retries produce identical titles.
func ResolveTitle(rawNames, requestID string, idx int) string {
	if name, ok := assetName(rawNames, idx); ok {
		return name
	}
	return assetBaseTitle + " [" + titleHash(requestID, idx) + "]"
}

// assetName resolves names[idx] from the Asset-Names JSON value. Malformed
// JSON or an empty list falls through to the synthesized title.
func assetName(raw string, idx int) (string, bool) {
	if raw == "" {
		return "", false
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return "", false
	}

	valid := make([]string, 0, len(names))
	for _, n := range names {
		if len(n) > 0 {
			valid = append(valid, strings.TrimSpace(n))
		}
	}
	if len(valid) == 0 {
		return "", false
	}
	if idx < len(valid) {
		return valid[idx], true
	}
	return valid[idx%len(valid)], true
}

// titleHash digests the request id and artifact index; no wall-clock or
// randomness, reproducible offline.
func titleHash(requestID string, idx int) string {
	h := sha256.New()
	h.Write([]byte(requestID))
	h.Write([]byte(strconv.Itoa(idx)))
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return digest[:titleHashLen]
}
