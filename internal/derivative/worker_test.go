package derivative

import (
	"alcyxob/navistream/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu      sync.Mutex
	sent    []string
	deleted []string
}

func (q *fakeQueue) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (q *fakeQueue) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (q *fakeQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

// copyTranscoder writes the descriptor transform into the output file.
type copyTranscoder struct {
	fail error
}

func (c copyTranscoder) Transcode(_ context.Context, _, output string, d Descriptor) error {
	if c.fail != nil {
		return c.fail
	}
	return os.WriteFile(output, []byte(d.Transform()), 0o600)
}

func newTestWorker(t *testing.T, tc Transcoder) (*Worker, *fakeQueue, storage.FileStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	q := &fakeQueue{}
	w := NewWorker(q, "https://sqs.test/queue", store, tc, 2, t.TempDir(), zerolog.Nop())
	return w, q, store
}

func message(t *testing.T, job Job, receipt string) types.Message {
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return types.Message{Body: aws.String(string(body)), ReceiptHandle: aws.String(receipt), MessageId: aws.String(receipt)}
}

func TestWorker_HandleMessageStoresDerivatives(t *testing.T) {
	ctx := context.Background()
	w, q, store := newTestWorker(t, copyTranscoder{})
	require.NoError(t, store.PutObject(ctx, "navistream/videos/abc.mp4", strings.NewReader("raw"), 3, "video/mp4"))

	job := Job{PublicID: "navistream/videos/abc", SourceKey: "navistream/videos/abc.mp4", Derivatives: DefaultSet(1280)}
	w.HandleMessage(ctx, message(t, job, "r-1"))

	rc, err := store.GetObject(ctx, Thumbnail.Key(job.PublicID))
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "w_400,h_225,c_fill", string(data))

	_, err = store.GetObject(ctx, Stream(1280).Key(job.PublicID))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1"}, q.deleted)
}

func TestWorker_FailedJobKeepsMessage(t *testing.T) {
	ctx := context.Background()
	w, q, store := newTestWorker(t, copyTranscoder{fail: errors.New("ffmpeg exploded")})
	require.NoError(t, store.PutObject(ctx, "navistream/videos/abc.mp4", strings.NewReader("raw"), 3, "video/mp4"))

	job := Job{PublicID: "navistream/videos/abc", SourceKey: "navistream/videos/abc.mp4"}
	w.HandleMessage(ctx, message(t, job, "r-2"))
	assert.Empty(t, q.deleted)
}

func TestWorker_MissingSourceKeepsMessage(t *testing.T) {
	w, q, _ := newTestWorker(t, copyTranscoder{})
	job := Job{PublicID: "navistream/videos/gone", SourceKey: "navistream/videos/gone.mp4"}
	w.HandleMessage(context.Background(), message(t, job, "r-3"))
	assert.Empty(t, q.deleted)
}

func TestWorker_PoisonMessageDeleted(t *testing.T) {
	w, q, _ := newTestWorker(t, copyTranscoder{})
	w.HandleMessage(context.Background(), types.Message{Body: aws.String("{not json"), ReceiptHandle: aws.String("r-4")})
	assert.Equal(t, []string{"r-4"}, q.deleted)
}

func TestSQSRequester_SendsJSONJob(t *testing.T) {
	q := &fakeQueue{}
	r := NewSQSRequester(q, "https://sqs.test/queue")
	job := Job{PublicID: "navistream/videos/abc", SourceKey: "navistream/videos/abc.mp4", Derivatives: DefaultSet(1280)}
	require.NoError(t, r.Request(context.Background(), job))

	require.Len(t, q.sent, 1)
	var got Job
	require.NoError(t, json.Unmarshal([]byte(q.sent[0]), &got))
	assert.Equal(t, job.PublicID, got.PublicID)
	assert.Equal(t, job.Derivatives, got.Derivatives)
}
