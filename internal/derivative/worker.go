package derivative

import (
	"alcyxob/navistream/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Transcoder produces one derivative file from a local source.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string, d Descriptor) error
}

type FFmpeg struct {
	Binary string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Binary: "ffmpeg"}
}

func (f *FFmpeg) Transcode(ctx context.Context, input, output string, d Descriptor) error {
	cmd := exec.CommandContext(ctx, f.Binary, d.FFmpegArgs(input, output)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", d.Transform(), err, tail(out, 512))
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

// Worker consumes derivative jobs from SQS. A message is deleted only after
// every derivative is stored, so failed jobs reappear after the visibility timeout.
type Worker struct {
	queue       SQSAPI
	queueURL    string
	store       storage.FileStorage
	transcoder  Transcoder
	concurrency int
	workDir     string
	log         zerolog.Logger
}

func NewWorker(queue SQSAPI, queueURL string, store storage.FileStorage, transcoder Transcoder, concurrency int, workDir string, logger zerolog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       queue,
		queueURL:    queueURL,
		store:       store,
		transcoder:  transcoder,
		concurrency: concurrency,
		workDir:     workDir,
		log:         logger.With().Str("component", "derivative_worker").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Str("queue", w.queueURL).Int("concurrency", w.concurrency).Msg("worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("worker stopping")
			return nil
		}
		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("receive message error")
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (w *Worker) poll(ctx context.Context) error {
	out, err := w.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: int32(min(w.concurrency, 10)),
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, m := range out.Messages {
		m := m
		g.Go(func() error {
			w.HandleMessage(gctx, m)
			return nil
		})
	}
	return g.Wait()
}

// HandleMessage processes one message and deletes it on success. Undecodable
// messages are deleted immediately so they cannot poison the queue.
func (w *Worker) HandleMessage(ctx context.Context, m types.Message) {
	var job Job
	if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &job); err != nil || job.PublicID == "" || job.SourceKey == "" {
		w.log.Error().Err(err).Str("message_id", aws.ToString(m.MessageId)).Msg("invalid message body")
		w.delete(ctx, m)
		return
	}

	jobLog := w.log.With().Str("public_id", job.PublicID).Logger()
	start := time.Now()
	if err := w.Process(ctx, job); err != nil {
		jobLog.Error().Err(err).Msg("derivative job failed")
		return
	}
	jobLog.Info().Dur("took", time.Since(start)).Msg("derivative job completed")
	w.delete(ctx, m)
}

func (w *Worker) delete(ctx context.Context, m types.Message) {
	_, err := w.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		w.log.Warn().Err(err).Str("message_id", aws.ToString(m.MessageId)).Msg("delete message failed")
	}
}

// Process downloads the source object, generates each derivative and stores
// it under its deterministic key.
func (w *Worker) Process(ctx context.Context, job Job) error {
	tmp, err := os.MkdirTemp(w.workDir, "derive-*")
	if err != nil {
		return fmt.Errorf("mkdir temp: %w", err)
	}
	defer os.RemoveAll(tmp)

	src := filepath.Join(tmp, "source"+filepath.Ext(job.SourceKey))
	if err := w.download(ctx, job.SourceKey, src); err != nil {
		return err
	}

	derivatives := job.Derivatives
	if len(derivatives) == 0 {
		derivatives = DefaultSet(DefaultStreamWidth)
	}

	var errs []error
	for i, d := range derivatives {
		out := filepath.Join(tmp, fmt.Sprintf("out-%d.%s", i, d.Format))
		if err := w.transcoder.Transcode(ctx, src, out, d); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := w.upload(ctx, out, d.Key(job.PublicID), d.ContentType()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Worker) download(ctx context.Context, key, dst string) error {
	body, err := w.store.GetObject(ctx, key)
	if err != nil {
		return fmt.Errorf("get source %s: %w", key, err)
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("download source %s: %w", key, err)
	}
	return nil
}

func (w *Worker) upload(ctx context.Context, path, key, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := w.store.PutObject(ctx, key, f, info.Size(), contentType); err != nil {
		return fmt.Errorf("store derivative %s: %w", key, err)
	}
	return nil
}
