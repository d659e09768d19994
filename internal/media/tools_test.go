package media

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickAudioStreamPrefersAudioOnly(t *testing.T) {
	raw := []byte(`{
		"title": "Talk",
		"uploader": "someone",
		"duration": 301.5,
		"formats": [
			{"format_id": "18", "acodec": "mp4a", "vcodec": "avc1", "ext": "mp4", "protocol": "https", "url": "https://cdn/muxed", "tbr": 500},
			{"format_id": "140", "acodec": "mp4a", "vcodec": "none", "ext": "m4a", "protocol": "https", "url": "https://cdn/m4a", "abr": 128},
			{"format_id": "251", "acodec": "opus", "vcodec": "none", "ext": "webm", "protocol": "https", "url": "https://cdn/webm", "abr": 160}
		]
	}`)

	url, meta, err := pickAudioStream(raw)
	require.NoError(t, err)
	// m4a at 128kbps scores 100+30+128=258; webm at 160 scores 90+30+160=280.
	assert.Equal(t, "https://cdn/webm", url)
	assert.Equal(t, "Talk", meta.Title)
	assert.Equal(t, 160, meta.Abr)
	assert.Equal(t, "webm", meta.Ext)
}

func TestPickAudioStreamFallsBackToMuxed(t *testing.T) {
	raw := []byte(`{
		"title": "Clip",
		"formats": [
			{"format_id": "18", "acodec": "mp4a", "vcodec": "avc1", "ext": "mp4", "protocol": "https", "url": "https://cdn/muxed", "tbr": 500},
			{"format_id": "sb0", "acodec": "none", "vcodec": "none", "ext": "mhtml", "protocol": "mhtml", "url": "https://cdn/story"}
		]
	}`)

	url, _, err := pickAudioStream(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/muxed", url)
}

func TestPickAudioStreamNoCandidates(t *testing.T) {
	_, _, err := pickAudioStream([]byte(`{"title": "x", "formats": []}`))
	assert.ErrorContains(t, err, "no usable audio formats")

	_, _, err = pickAudioStream([]byte(`not json`))
	assert.ErrorContains(t, err, "parse error")
}

func TestScoreFormatOrdering(t *testing.T) {
	m4a := scoreFormat(probeFormat{Ext: "m4a", Protocol: "https", ABR: 128})
	hls := scoreFormat(probeFormat{Ext: "m4a", Protocol: "m3u8_native", ABR: 128})
	assert.Greater(t, m4a, hls, "direct https beats hls at equal bitrate")

	tbrOnly := scoreFormat(probeFormat{Ext: "mp4", Protocol: "https", TBR: 200})
	assert.Equal(t, 70+30+100, tbrOnly, "tbr counts at half weight")
}

func TestDownloadOperation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("media-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ts := NewToolset(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, label, code := ts.Download("job-1", map[string]any{"url": srv.URL + "/clip.mp4"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "download complete", label)

	res := result.(map[string]any)
	assert.Equal(t, filepath.Join(dir, "job-1.mp4"), res["file"])

	data, err := os.ReadFile(res["file"].(string))
	require.NoError(t, err)
	assert.Equal(t, "media-bytes", string(data))
}

func TestDownloadOperationFailures(t *testing.T) {
	dir := t.TempDir()
	ts := NewToolset(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, label, code := ts.Download("job-2", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "download failed", label)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result, _, code := ts.Download("job-3", map[string]any{"url": srv.URL + "/missing.mp3"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, result.(string), "status 404")
}

func TestRegistryCoversAllOperations(t *testing.T) {
	ts := NewToolset(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg := ts.Registry()
	for _, name := range []string{OpTranscribe, OpConvert, OpDownload} {
		assert.Contains(t, reg, name)
	}
}
