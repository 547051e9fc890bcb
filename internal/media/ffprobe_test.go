package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_type": "audio"},
    {"index": 1, "codec_type": "video", "width": 1920, "height": 1080}
  ],
  "format": {
    "nb_streams": 2,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "12.480000",
    "size": "10485760"
  }
}`

func TestParse(t *testing.T) {
	info, err := Parse([]byte(sampleOutput))
	require.NoError(t, err)
	assert.InDelta(t, 12.48, info.DurationSeconds, 0.0001)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", info.FormatName)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.Error(t, err)
}

func TestFFProbe_MissingBinary(t *testing.T) {
	p := &FFProbe{Binary: "ffprobe-does-not-exist"}
	_, err := p.Probe(context.Background(), "/nonexistent.mp4")
	assert.Error(t, err)
}
