package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterations(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		nImages int
		want    int
	}{
		{"webui honors requested count", "webui", 3, 3},
		{"webui caps at max", "webui", 11, 4},
		{"webui zero defaults", "webui", 0, 4},
		{"webui max boundary", "webui", 10, 10},
		{"text always one", "", 3, 1},
		{"audio always one", "audio", 7, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Registration{PayloadFormat: tc.format}
			assert.Equal(t, tc.want, r.Iterations(tc.nImages, 10))
		})
	}
}

func TestIterationsSettingsDefault(t *testing.T) {
	r := Registration{
		PayloadFormat: "webui",
		Settings:      map[string]interface{}{"n_iter": 6},
	}
	assert.Equal(t, 6, r.Iterations(0, 10), "configured n_iter beats the fixed default")
	assert.Equal(t, 6, r.Iterations(11, 10), "over-max request falls back to n_iter")
	assert.Equal(t, 3, r.Iterations(3, 10), "explicit request still wins")

	unset := Registration{PayloadFormat: "webui", Settings: map[string]interface{}{}}
	assert.Equal(t, 4, unset.Iterations(0, 10))
}

func TestEffectiveFee(t *testing.T) {
	r := Registration{PayloadFormat: "webui", OperatorFee: 50}
	assert.Equal(t, float64(150), r.EffectiveFee(3, 10))
	assert.Equal(t, float64(200), r.EffectiveFee(0, 10))

	text := Registration{PayloadFormat: "", OperatorFee: 50}
	assert.Equal(t, float64(50), text.EffectiveFee(3, 10))
}

func TestSettingsAccessors(t *testing.T) {
	r := Registration{Settings: map[string]interface{}{
		"prompt":          "masterpiece, ",
		"negative_prompt": "lowres",
		"steps":           30,
	}}
	assert.Equal(t, "masterpiece, ", r.SettingsPrompt())
	assert.Equal(t, "lowres", r.SettingsNegativePrompt())

	empty := Registration{}
	assert.Empty(t, empty.SettingsPrompt())
	assert.Empty(t, empty.SettingsNegativePrompt())
}
