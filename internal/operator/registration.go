// Package operator owns the request-processing loop: registration state,
// deduplication, per-registration dispatch and the pipeline itself.
package operator

import (
	"github.com/spf13/cast"

	"github.com/fair-protocol/operator/internal/inference"
)

// defaultIterations is the image count assumed for webui registrations
// when the request does not carry a usable N-Images tag.
const defaultIterations = 4

// Registration binds a curated script to the backend that serves it.
// Validated once at startup and immutable afterwards; each registration
// owns exactly one dispatch lock.
type Registration struct {
	// ID is the registration transaction on the ledger.
	ID string

	ScriptID      string
	ScriptName    string
	ScriptCurator string
	ModelOwner    string
	ModelName     string
	OperatorFee   float64

	// Backend wiring from the configuration file.
	URL           string
	PayloadFormat string
	Settings      map[string]interface{}
}

// SettingsPrompt returns the registration-level prompt fragment, if any.
func (r *Registration) SettingsPrompt() string {
	s, _ := r.Settings["prompt"].(string)
	return s
}

// SettingsNegativePrompt returns the registration-level negative prompt.
func (r *Registration) SettingsNegativePrompt() string {
	s, _ := r.Settings["negative_prompt"].(string)
	return s
}

// Iterations resolves how many inference calls a request costs. Image
// backends honor the requested count up to maxImages; an unusable count
// falls back to the registration's n_iter setting, then to
// defaultIterations. Other formats always run once.
func (r *Registration) Iterations(nImages, maxImages int) int {
	if r.PayloadFormat != inference.FormatWebUI {
		return 1
	}
	if nImages > 0 && nImages <= maxImages {
		return nImages
	}
	if n := cast.ToInt(r.Settings["n_iter"]); n > 0 {
		return n
	}
	return defaultIterations
}

// EffectiveFee scales the base operator fee by the iteration count, so
// the payment check covers every image the request will produce.
func (r *Registration) EffectiveFee(nImages, maxImages int) float64 {
	return r.OperatorFee * float64(r.Iterations(nImages, maxImages))
}
