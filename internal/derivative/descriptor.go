// Package derivative describes the playback artifacts generated from an
// uploaded video and runs the worker that produces them.
package derivative

import (
	"strconv"
	"strings"
)

type Kind string

const (
	KindStream    Kind = "stream"
	KindThumbnail Kind = "thumbnail"
)

const DefaultStreamWidth = 1280

// Descriptor is one derivative to generate. Its transform string is part of
// the object key, so the same publicID always yields the same key.
type Descriptor struct {
	Kind    Kind   `json:"kind"`
	Format  string `json:"format"`
	Quality string `json:"quality,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Crop    string `json:"crop,omitempty"`
}

// Thumbnail is a 400x225 JPEG, center-cropped to fill.
var Thumbnail = Descriptor{Kind: KindThumbnail, Format: "jpg", Width: 400, Height: 225, Crop: "fill"}

// Stream is an mp4 scaled down to at most width pixels wide at automatic quality.
func Stream(width int) Descriptor {
	if width <= 0 {
		width = DefaultStreamWidth
	}
	return Descriptor{Kind: KindStream, Format: "mp4", Quality: "auto", Width: width, Crop: "scale"}
}

// DefaultSet is requested for every upload.
func DefaultSet(streamWidth int) []Descriptor {
	return []Descriptor{Stream(streamWidth), Thumbnail}
}

// Transform renders the descriptor as e.g. "w_400,h_225,c_fill".
func (d Descriptor) Transform() string {
	var parts []string
	if d.Quality != "" {
		parts = append(parts, "q_"+d.Quality)
	}
	if d.Width > 0 {
		parts = append(parts, "w_"+strconv.Itoa(d.Width))
	}
	if d.Height > 0 {
		parts = append(parts, "h_"+strconv.Itoa(d.Height))
	}
	if d.Crop != "" {
		parts = append(parts, "c_"+d.Crop)
	}
	return strings.Join(parts, ",")
}

// Key is the object key the derivative of publicID is stored under.
func (d Descriptor) Key(publicID string) string {
	return publicID + "/" + d.Transform() + "." + d.Format
}

func (d Descriptor) ContentType() string {
	switch d.Format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// FFmpegArgs builds the ffmpeg argument list turning input into this derivative at output.
func (d Descriptor) FFmpegArgs(input, output string) []string {
	args := []string{"-y", "-i", input}
	switch d.Kind {
	case KindThumbnail:
		vf := "thumbnail"
		if d.Width > 0 && d.Height > 0 {
			size := strconv.Itoa(d.Width) + ":" + strconv.Itoa(d.Height)
			if d.Crop == "fill" {
				vf += ",scale=" + size + ":force_original_aspect_ratio=increase,crop=" + size
			} else {
				vf += ",scale=" + size
			}
		}
		args = append(args, "-vf", vf, "-frames:v", "1", "-q:v", "2")
	default:
		if d.Width > 0 {
			// never upscale; -2 keeps the height even for libx264
			args = append(args, "-vf", "scale='min("+strconv.Itoa(d.Width)+",iw)':-2")
		}
		crf := "23"
		if d.Quality != "" && d.Quality != "auto" {
			crf = d.Quality
		}
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", crf,
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	}
	return append(args, output)
}
