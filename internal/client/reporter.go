package client

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/fatih/color"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders n in base-1024 units with at most two decimals,
// e.g. "1.5 KB", "10 MB".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// TextReporter draws upload progress on a terminal line.
type TextReporter struct {
	Out     io.Writer
	NoColor bool

	lastPercent int
}

func NewTextReporter(out io.Writer, noColor bool) *TextReporter {
	return &TextReporter{Out: out, NoColor: noColor, lastPercent: -1}
}

func (r *TextReporter) colorize(text string, attributes ...color.Attribute) string {
	if r.NoColor {
		return text
	}
	c := color.New(attributes...)
	c.EnableColor()
	return c.Sprint(text)
}

func (r *TextReporter) OnProgress(p Progress) {
	pct := p.Percent()
	if pct == r.lastPercent {
		return
	}
	r.lastPercent = pct
	fmt.Fprintf(r.Out, "\r%s Uploaded %s of %s",
		r.colorize(fmt.Sprintf("%3d%%", pct), color.FgCyan, color.Bold),
		FormatFileSize(p.BytesSent), FormatFileSize(p.TotalBytes))
}

func (r *TextReporter) OnComplete(res *UploadResponse) {
	fmt.Fprintln(r.Out)
	fmt.Fprintf(r.Out, "%s %s (%s)\n", r.colorize("Upload successful:", color.FgGreen, color.Bold), res.Video.Title, res.Video.ID.Hex())
	if res.Video.URL != "" {
		fmt.Fprintf(r.Out, "  url:       %s\n", res.Video.URL)
	}
	if res.Video.ThumbnailURL != "" {
		fmt.Fprintf(r.Out, "  thumbnail: %s\n", res.Video.ThumbnailURL)
	}
}

func (r *TextReporter) OnError(err error) {
	fmt.Fprintln(r.Out)
	fmt.Fprintf(r.Out, "%s %v\n", r.colorize("Upload failed:", color.FgRed, color.Bold), err)
}
