package pipeline

import (
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/repository/memory"
	"alcyxob/navistream/internal/storage"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testAllowedTypes = []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/x-matroska"}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// flakyStorage fails the first `failures` PutObject calls with err; -1 fails forever.
type flakyStorage struct {
	storage.FileStorage
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (f *flakyStorage) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures != 0
	if f.failures > 0 {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		_, _ = io.Copy(io.Discard, body)
		return f.err
	}
	return f.FileStorage.PutObject(ctx, key, body, size, contentType)
}

func (f *flakyStorage) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingRequester struct {
	mu   sync.Mutex
	jobs []derivative.Job
}

func (r *recordingRequester) Request(_ context.Context, job derivative.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingRequester) Jobs() []derivative.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]derivative.Job(nil), r.jobs...)
}

type harness struct {
	orch       *Orchestrator
	uploader   *RemoteUploader
	store      *flakyStorage
	videos     *memory.VideoRepository
	requester  *recordingRequester
	stagingDir string
	logs       *syncBuffer
}

func newHarness(t *testing.T, maxBytes int64) *harness {
	t.Helper()
	logs := &syncBuffer{}
	logger := zerolog.New(logs)

	local, err := storage.NewLocalStorage(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)
	store := &flakyStorage{FileStorage: local}

	stagingDir := t.TempDir()
	staging, err := NewStagingStore(stagingDir, logger)
	require.NoError(t, err)

	requester := &recordingRequester{}
	uploader := NewRemoteUploader(store, nil, NewURLBuilder(store, 1280), requester, UploaderConfig{
		Folder:        "navistream/videos",
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
	}, nil, logger)

	videos := memory.NewVideoRepository()
	orch := NewOrchestrator(NewAdmissionFilter(testAllowedTypes, maxBytes), staging, uploader, NewMetadataRecorder(videos), nil, logger)
	t.Cleanup(uploader.Wait)

	return &harness{
		orch:       orch,
		uploader:   uploader,
		store:      store,
		videos:     videos,
		requester:  requester,
		stagingDir: stagingDir,
		logs:       logs,
	}
}

func (h *harness) stagingEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.stagingDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (h *harness) storedObjects(t *testing.T) []storage.ObjectInfo {
	t.Helper()
	objects, err := h.store.ListObjects(context.Background(), "")
	require.NoError(t, err)
	return objects
}

type formField struct{ name, value string }

type upload struct {
	fields      []formField
	fileName    string
	contentType string
	content     []byte
	fileFirst   bool
	omitFile    bool
}

// body encodes u as multipart/form-data and returns a reader over it.
func (u upload) body(t *testing.T) (*multipart.Reader, int64) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	writeFile := func() {
		if u.omitFile {
			return
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, u.fileName))
		h.Set("Content-Type", u.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}

	if u.fileFirst {
		writeFile()
	}
	for _, f := range u.fields {
		require.NoError(t, w.WriteField(f.name, f.value))
	}
	if !u.fileFirst {
		writeFile()
	}
	require.NoError(t, w.Close())

	size := int64(buf.Len())
	return multipart.NewReader(&buf, w.Boundary()), size
}

// mp4Header is an ISO base media ftyp box; content sniffing reports video/mp4.
var mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2")

// mp4Bytes returns size bytes that start like an mp4 file, padded with fill.
func mp4Bytes(size int, fill byte) []byte {
	b := bytes.Repeat([]byte{fill}, size)
	copy(b, mp4Header)
	return b
}

func mp4Upload(title string, size int) upload {
	return upload{
		fields:      []formField{{"title", title}, {"description", "a clip"}, {"category", "sports"}},
		fileName:    "clip.mp4",
		contentType: "video/mp4",
		content:     mp4Bytes(size, 0x42),
	}
}
