// Package media reads container metadata from staged video files.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Info is what the pipeline records about a video's container and first video stream.
type Info struct {
	DurationSeconds float64
	Width           int
	Height          int
	FormatName      string
}

type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

type ffProbeFormat struct {
	StreamsCount int32   `json:"nb_streams"`
	Format       string  `json:"format_name"`
	Duration     float64 `json:"duration,string"`
	Size         int64   `json:"size,string"`
}

type ffProbeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffProbeOutput struct {
	Format  ffProbeFormat   `json:"format"`
	Streams []ffProbeStream `json:"streams"`
}

// FFProbe shells out to the ffprobe binary.
type FFProbe struct {
	Binary string
}

func NewFFProbe() *FFProbe {
	return &FFProbe{Binary: "ffprobe"}
}

func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return Parse(stdout.Bytes())
}

// Parse decodes ffprobe JSON output. Width and height come from the first video stream.
func Parse(raw []byte) (Info, error) {
	var out ffProbeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := Info{
		DurationSeconds: out.Format.Duration,
		FormatName:      out.Format.Format,
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	return info, nil
}

// NopProber reports zero values for every file.
type NopProber struct{}

func (NopProber) Probe(context.Context, string) (Info, error) { return Info{}, nil }
