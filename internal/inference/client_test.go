package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadRawFormat(t *testing.T) {
	body, contentType, err := BuildPayload("alpaca", "hello there", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(body))
	assert.Equal(t, "text/plain", contentType)
}

func TestBuildPayloadWebUIMergesSettings(t *testing.T) {
	settings := map[string]interface{}{
		"prompt":          "masterpiece, ",
		"negative_prompt": "blurry",
		"steps":           20,
		"n_iter":          4,
	}

	body, contentType, err := BuildPayload(FormatWebUI, "a red fox", settings, "low quality")
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "masterpiece, a red fox", got["prompt"])
	assert.Equal(t, "blurry low quality", got["negative_prompt"])
	assert.Equal(t, float64(20), got["steps"])
	// single iteration is forced regardless of settings
	assert.Equal(t, float64(1), got["n_iter"])
}

func TestBuildPayloadWebUINegativePromptOnly(t *testing.T) {
	body, _, err := BuildPayload(FormatWebUI, "a fox", nil, "low quality")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "a fox", got["prompt"])
	assert.Equal(t, "low quality", got["negative_prompt"])
}

func TestParseSeed(t *testing.T) {
	cases := []struct {
		name string
		info string
		want string
	}{
		{"typical", "Steps: 20, Sampler: Euler, Seed: 12345, Size: 512x512", "12345"},
		{"no seed", "Steps: 20, Sampler: Euler", ""},
		{"no trailing comma", "Steps: 20, Seed: 99", ""},
		{"leading space", "Seed:  42 , rest", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseSeed(tc.info))
		})
	}
}

func TestRunInlineImages(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))

	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"images": []string{png}})
	})
	mux.HandleFunc("/sdapi/v1/png-info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"info": "Steps: 20, Seed: 777, Size: 512x512"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	client := NewClient(5*time.Second, dir)

	result, err := client.Run(context.Background(), srv.URL+"/sdapi/v1/txt2img", FormatWebUI, []byte(`{}`), "application/json", "script-1", "a fox")
	require.NoError(t, err)

	require.Len(t, result.ArtifactPaths, 1)
	require.Len(t, result.Seeds, 1)
	assert.Equal(t, "777", result.Seeds[0])
	assert.Equal(t, "a fox", result.Prompt)

	written, err := os.ReadFile(result.ArtifactPaths[0])
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(written))
}

func TestRunPathResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"imgPaths": []string{"/tmp/a.png", "/tmp/b.png"}})
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, t.TempDir())
	result, err := client.Run(context.Background(), srv.URL, "custom", []byte("prompt"), "text/plain", "s", "prompt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/a.png", "/tmp/b.png"}, result.ArtifactPaths)
	assert.Empty(t, result.Seeds)
}

func TestRunAudioResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"audioPath": "/tmp/voice.wav"})
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, t.TempDir())
	result, err := client.Run(context.Background(), srv.URL, "bark", []byte("say hi"), "text/plain", "s", "say hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/voice.wav"}, result.ArtifactPaths)
}

func TestRunUnrecognizedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"noise":true}`))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, t.TempDir())
	_, err := client.Run(context.Background(), srv.URL, "custom", []byte("x"), "text/plain", "s", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized response shape")
}
