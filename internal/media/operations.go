package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sonavox/mediad/internal/core"
)

// Operation names as exposed on the API.
const (
	OpTranscribe = "transcribe"
	OpConvert    = "convert"
	OpDownload   = "download"
)

// Registry binds each operation name to its implementation. The dispatch
// engine treats the values as black boxes.
func (t *Toolset) Registry() map[string]core.Operation {
	return map[string]core.Operation{
		OpTranscribe: t.Transcribe,
		OpConvert:    t.Convert,
		OpDownload:   t.Download,
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// Convert extracts the best audio stream for the payload URL and transcodes
// it to mp3 under the output directory.
func (t *Toolset) Convert(jobID string, payload map[string]any) (any, string, int) {
	mediaURL := payloadString(payload, "url")
	if mediaURL == "" {
		return "missing url in payload", "conversion failed", http.StatusBadRequest
	}

	if err := os.MkdirAll(t.outputDir, 0o750); err != nil {
		return fmt.Sprintf("failed to create output directory: %v", err), "conversion failed", http.StatusInternalServerError
	}

	ctx := context.Background()
	audioURL, meta, err := t.probeAudioStream(ctx, mediaURL)
	if err != nil {
		return err.Error(), "stream extraction failed", http.StatusInternalServerError
	}

	outputPath := filepath.Join(t.outputDir, jobID+".mp3")
	if err := t.convertToMP3(ctx, audioURL, outputPath); err != nil {
		return err.Error(), "conversion failed", http.StatusInternalServerError
	}

	t.logger.Info("conversion finished", "job_id", jobID, "file", outputPath)
	return map[string]any{
		"file":     outputPath,
		"metadata": meta,
	}, "conversion complete", http.StatusOK
}

// Transcribe converts the payload URL to WAV and runs the transcription
// model over it.
func (t *Toolset) Transcribe(jobID string, payload map[string]any) (any, string, int) {
	mediaURL := payloadString(payload, "url")
	if mediaURL == "" {
		return "missing url in payload", "transcription failed", http.StatusBadRequest
	}

	if err := os.MkdirAll(t.outputDir, 0o750); err != nil {
		return fmt.Sprintf("failed to create output directory: %v", err), "transcription failed", http.StatusInternalServerError
	}

	ctx := context.Background()
	audioURL, meta, err := t.probeAudioStream(ctx, mediaURL)
	if err != nil {
		return err.Error(), "stream extraction failed", http.StatusInternalServerError
	}

	wavPath := filepath.Join(t.outputDir, jobID+".wav")
	if err := t.extractWAV(ctx, audioURL, wavPath); err != nil {
		return err.Error(), "audio extraction failed", http.StatusInternalServerError
	}
	defer os.Remove(wavPath)

	text, err := t.transcribeWAV(ctx, wavPath, payloadString(payload, "language"))
	if err != nil {
		return err.Error(), "transcription failed", http.StatusInternalServerError
	}

	t.logger.Info("transcription finished", "job_id", jobID, "chars", len(text))
	return map[string]any{
		"text":     text,
		"metadata": meta,
	}, "transcription complete", http.StatusOK
}

// Download fetches the payload URL verbatim into the output directory.
func (t *Toolset) Download(jobID string, payload map[string]any) (any, string, int) {
	fileURL := payloadString(payload, "url")
	if fileURL == "" {
		return "missing url in payload", "download failed", http.StatusBadRequest
	}

	if err := os.MkdirAll(t.outputDir, 0o750); err != nil {
		return fmt.Sprintf("failed to create output directory: %v", err), "download failed", http.StatusInternalServerError
	}

	resp, err := http.Get(fileURL)
	if err != nil {
		return fmt.Sprintf("failed to fetch %s: %v", fileURL, err), "download failed", http.StatusInternalServerError
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("source returned status %d", resp.StatusCode), "download failed", http.StatusBadGateway
	}

	ext := ".bin"
	if u, err := url.Parse(fileURL); err == nil && filepath.Ext(u.Path) != "" {
		ext = filepath.Ext(u.Path)
	}
	outputPath := filepath.Join(t.outputDir, jobID+ext)
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Sprintf("failed to create file: %v", err), "download failed", http.StatusInternalServerError
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = os.Remove(outputPath)
		return fmt.Sprintf("failed to write file: %v", err), "download failed", http.StatusInternalServerError
	}

	t.logger.Info("download finished", "job_id", jobID, "file", outputPath, "bytes", written)
	return map[string]any{
		"file":  outputPath,
		"bytes": written,
	}, "download complete", http.StatusOK
}
