package pipeline

import (
	"alcyxob/navistream/internal/domain"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionFilter_Admit(t *testing.T) {
	f := NewAdmissionFilter(testAllowedTypes, 100<<20)

	tests := []struct {
		name string
		meta FileMeta
		want error
	}{
		{"mp4", FileMeta{ContentType: "video/mp4", DeclaredSize: 10 << 20}, nil},
		{"quicktime with params", FileMeta{ContentType: "Video/QuickTime; charset=binary", DeclaredSize: -1}, nil},
		{"exactly at limit", FileMeta{ContentType: "video/x-matroska", DeclaredSize: 100 << 20}, nil},
		{"image", FileMeta{ContentType: "image/png", DeclaredSize: 10}, ErrUnsupportedType},
		{"empty type", FileMeta{ContentType: "", DeclaredSize: 10}, ErrUnsupportedType},
		{"too large", FileMeta{ContentType: "video/mp4", DeclaredSize: 150 << 20}, ErrTooLarge},
		{"type checked first", FileMeta{ContentType: "text/plain", DeclaredSize: 150 << 20}, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Admit(tt.meta)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsAdmission(err))
		})
	}
}

func TestAdmissionFilter_AdmitFields(t *testing.T) {
	f := NewAdmissionFilter(testAllowedTypes, 1)

	c, err := f.AdmitFields("Test", "")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, c)

	c, err = f.AdmitFields("Test", "music")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryMusic, c)

	_, err = f.AdmitFields("   ", "music")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = f.AdmitFields("Test", "cooking")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestError_UnwrapMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Stage: StageRemote, Kind: ErrRemoteUploadFailure, Err: cause}
	assert.ErrorIs(t, err, ErrRemoteUploadFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "RemoteUploadFailure", err.Code())
	assert.False(t, IsAdmission(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAdmissionFilter_AdmitContent(t *testing.T) {
	f := NewAdmissionFilter(testAllowedTypes, 100<<20)

	assert.NoError(t, f.AdmitContent("video/mp4"))
	assert.NoError(t, f.AdmitContent("video/webm"))
	assert.NoError(t, f.AdmitContent("application/octet-stream"), "unclassified bytes are left to the remote side")
	assert.NoError(t, f.AdmitContent(""))

	err := f.AdmitContent("image/png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, IsAdmission(err))
	assert.ErrorIs(t, f.AdmitContent("text/plain; charset=utf-8"), ErrUnsupportedType)
}
