// Package media implements the work functions the dispatch engine executes:
// stream probing, audio conversion, transcription, and plain file download.
// The heavy lifting is delegated to external tools (yt-dlp, ffmpeg, whisper);
// the engine only ever sees the Operation contract.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	probeTimeout      = 45 * time.Second
	convertTimeout    = 10 * time.Minute
	transcribeTimeout = 30 * time.Minute
)

// Metadata describes the source media as reported by yt-dlp.
type Metadata struct {
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	AudioURL string  `json:"audio_url"`
	Ext      string  `json:"ext"`
	Abr      int     `json:"abr"`
}

type probeFormat struct {
	FormatID string  `json:"format_id"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	Ext      string  `json:"ext"`
	Protocol string  `json:"protocol"`
	URL      string  `json:"url"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
}

type probeInfo struct {
	Title    string        `json:"title"`
	Uploader string        `json:"uploader"`
	Duration float64       `json:"duration"`
	Formats  []probeFormat `json:"formats"`
}

// Toolset shells out to the external media tools. One instance is shared by
// all operations; it holds no per-job state.
type Toolset struct {
	outputDir string
	logger    *slog.Logger
}

// NewToolset creates a toolset writing artifacts under outputDir.
func NewToolset(outputDir string, logger *slog.Logger) *Toolset {
	return &Toolset{outputDir: outputDir, logger: logger}
}

// probeAudioStream asks yt-dlp for metadata and picks the best audio-only
// stream URL.
func (t *Toolset) probeAudioStream(ctx context.Context, mediaURL string) (string, *Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "yt-dlp", "-J", "--no-warnings", "--skip-download", mediaURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", nil, fmt.Errorf("yt-dlp metadata error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}

	return pickAudioStream(stdout.Bytes())
}

// pickAudioStream parses yt-dlp JSON output and selects the best candidate.
// Audio-only formats are preferred; muxed formats with an audio track are the
// fallback.
func pickAudioStream(raw []byte) (string, *Metadata, error) {
	var info probeInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", nil, fmt.Errorf("yt-dlp metadata parse error: %w", err)
	}

	candidates := make([]probeFormat, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f.URL == "" {
			continue
		}
		if (f.VCodec == "none" || f.VCodec == "") && f.ACodec != "none" {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		for _, f := range info.Formats {
			if f.URL != "" && f.ACodec != "none" {
				candidates = append(candidates, f)
			}
		}
	}
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("no usable audio formats found")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := scoreFormat(candidates[i]), scoreFormat(candidates[j])
		if si == sj {
			return candidates[i].ABR > candidates[j].ABR
		}
		return si > sj
	})

	best := candidates[0]
	meta := &Metadata{
		Title:    info.Title,
		Uploader: info.Uploader,
		Duration: info.Duration,
		AudioURL: best.URL,
		Ext:      best.Ext,
		Abr:      int(best.ABR),
	}
	return best.URL, meta, nil
}

// scoreFormat ranks a candidate stream: container first, then transport,
// then bitrate as a tie-breaker.
func scoreFormat(f probeFormat) int {
	score := 0
	switch strings.ToLower(f.Ext) {
	case "m4a":
		score += 100
	case "webm":
		score += 90
	case "ogg", "opus":
		score += 85
	case "mp4":
		score += 70
	default:
		score += 60
	}
	p := strings.ToLower(f.Protocol)
	switch {
	case strings.HasPrefix(p, "https"):
		score += 30
	case strings.HasPrefix(p, "http"):
		score += 25
	case strings.Contains(p, "m3u8") || strings.Contains(p, "hls"):
		score += 20
	case strings.Contains(p, "dash"):
		score += 15
	}
	if f.ABR > 0 {
		score += int(f.ABR)
	} else if f.TBR > 0 {
		score += int(f.TBR / 2)
	}
	return score
}

// convertToMP3 transcodes the stream at audioURL into an mp3 file.
func (t *Toolset) convertToMP3(ctx context.Context, audioURL, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", audioURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-b:a", "192k",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// extractWAV produces the 16kHz mono WAV input the transcription model wants.
func (t *Toolset) extractWAV(ctx context.Context, audioURL, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", audioURL,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// transcribeWAV runs whisper over the extracted audio and returns the text.
func (t *Toolset) transcribeWAV(ctx context.Context, wavPath, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	args := []string{wavPath, "--output_format", "txt", "--output_dir", t.outputDir}
	if language != "" {
		args = append(args, "--language", language)
	}
	cmd := exec.CommandContext(ctx, "whisper", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
