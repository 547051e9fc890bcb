package pipeline

import (
	"alcyxob/navistream/internal/derivative"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	serverFault = &smithy.GenericAPIError{Code: "InternalError", Message: "try again", Fault: smithy.FaultServer}
	clientFault = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no", Fault: smithy.FaultClient}
)

func stageString(t *testing.T, h *harness, content string) *StagedFile {
	t.Helper()
	sf, err := h.orch.staging.Stage(context.Background(), strings.NewReader(content), "video/mp4")
	require.NoError(t, err)
	t.Cleanup(func() { h.orch.staging.Release(sf) })
	return sf
}

func TestRemoteUploader_Success(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.uploader.newID = func() string { return "fixed-id" }
	sf := stageString(t, h, "video bytes")

	asset, err := h.uploader.Upload(context.Background(), sf)
	require.NoError(t, err)
	h.uploader.Wait()

	assert.Equal(t, "navistream/videos/fixed-id", asset.PublicID)
	assert.Equal(t, "navistream/videos/fixed-id.mp4", asset.ObjectKey)
	assert.Equal(t, "https://cdn.example.com/navistream/videos/fixed-id.mp4", asset.SecureURL)
	assert.Equal(t, "https://cdn.example.com/navistream/videos/fixed-id/w_400,h_225,c_fill.jpg", asset.ThumbnailURL)
	assert.Equal(t, 1, h.store.Calls())

	jobs := h.requester.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, asset.PublicID, jobs[0].PublicID)
	assert.Equal(t, asset.ObjectKey, jobs[0].SourceKey)
	assert.Equal(t, derivative.DefaultSet(1280), jobs[0].Derivatives)
}

func TestRemoteUploader_RetriesTransientErrors(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.store.failures = 2
	h.store.err = serverFault
	sf := stageString(t, h, "video bytes")

	asset, err := h.uploader.Upload(context.Background(), sf)
	require.NoError(t, err)
	assert.Equal(t, 3, h.store.Calls())

	objects := h.storedObjects(t)
	require.Len(t, objects, 1)
	assert.Equal(t, asset.ObjectKey, objects[0].Key)
	assert.Equal(t, int64(len("video bytes")), objects[0].Size, "each attempt re-reads the staged file from the start")
}

func TestRemoteUploader_GivesUpAfterMaxRetries(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.store.failures = -1
	h.store.err = serverFault
	sf := stageString(t, h, "video bytes")

	_, err := h.uploader.Upload(context.Background(), sf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteUploadFailure)
	assert.ErrorIs(t, err, serverFault)
	assert.Equal(t, 4, h.store.Calls(), "one attempt plus three retries")
	assert.Empty(t, h.requester.Jobs())
}

func TestRemoteUploader_DoesNotRetryClientFaults(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.store.failures = -1
	h.store.err = clientFault
	sf := stageString(t, h, "video bytes")

	_, err := h.uploader.Upload(context.Background(), sf)
	assert.ErrorIs(t, err, ErrRemoteUploadFailure)
	assert.Equal(t, 1, h.store.Calls())
}

func TestRemoteUploader_DoesNotRetryUnclassifiedErrors(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.store.failures = -1
	h.store.err = errors.New(`invalid object key "../x"`)
	sf := stageString(t, h, "video bytes")

	_, err := h.uploader.Upload(context.Background(), sf)
	assert.ErrorIs(t, err, ErrRemoteUploadFailure)
	assert.Equal(t, 1, h.store.Calls())
}

func TestURLBuilder_ThumbnailIsDerivedFromPublicID(t *testing.T) {
	h := newHarness(t, 1<<20)
	urls := NewURLBuilder(h.store, 1280)
	id := "navistream/videos/3b9d"

	first := urls.ThumbnailURL(id)
	assert.Equal(t, first, urls.ThumbnailURL(id))
	assert.Equal(t, "https://cdn.example.com/navistream/videos/3b9d/w_400,h_225,c_fill.jpg", first)
	assert.Equal(t, "https://cdn.example.com/navistream/videos/3b9d/q_auto,w_1280,c_scale.mp4", urls.StreamURL(id))
	assert.ElementsMatch(t, []string{
		"navistream/videos/3b9d/w_400,h_225,c_fill.jpg",
		"navistream/videos/3b9d/q_auto,w_1280,c_scale.mp4",
	}, urls.DerivativeKeys(id))
}
