package pipeline

import (
	"alcyxob/navistream/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// multipartOverhead is the room allowed for boundaries, headers and text fields.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 8 << 10
	recordTimeout     = 30 * time.Second
)

// State is a pipeline run's position in the state machine.
type State string

const (
	StateReceived       State = "received"
	StateAdmitted       State = "admitted"
	StateStaged         State = "staged"
	StateRemoteUploaded State = "remote_uploaded"
	StateRecorded       State = "recorded"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

type Uploader interface {
	Upload(ctx context.Context, sf *StagedFile) (*domain.RemoteAsset, error)
}

type Recorder interface {
	Record(ctx context.Context, asset *domain.RemoteAsset, req domain.UploadRequest, sf *StagedFile) (*domain.Video, error)
}

// Orchestrator runs one upload per call; it holds no per-request state.
type Orchestrator struct {
	admission *AdmissionFilter
	staging   *StagingStore
	cleanup   *CleanupCoordinator
	uploader  Uploader
	recorder  Recorder
	obs       Observer
	log       zerolog.Logger
	tracer    trace.Tracer
}

func NewOrchestrator(admission *AdmissionFilter, staging *StagingStore, uploader Uploader, recorder Recorder, obs Observer, logger zerolog.Logger) *Orchestrator {
	if obs == nil {
		obs = NopObserver()
	}
	logger = logger.With().Str("component", "upload_pipeline").Logger()
	return &Orchestrator{
		admission: admission,
		staging:   staging,
		cleanup:   NewCleanupCoordinator(staging, logger),
		uploader:  uploader,
		recorder:  recorder,
		obs:       obs,
		log:       logger,
		tracer:    otel.Tracer("alcyxob/navistream/internal/pipeline"),
	}
}

// MaxRequestBytes bounds the whole multipart body.
func (o *Orchestrator) MaxRequestBytes() int64 {
	return o.admission.MaxBytes() + multipartOverhead
}

// Cleanup exposes the coordinator for the startup sweep.
func (o *Orchestrator) Cleanup() *CleanupCoordinator { return o.cleanup }

// run tracks one request through the state machine.
type run struct {
	state State
	log   zerolog.Logger
}

func (r *run) advance(s State) {
	r.log.Debug().Str("from", string(r.state)).Str("to", string(s)).Msg("pipeline transition")
	r.state = s
}

// Ingest reads a multipart upload (fields "video", "title", "description",
// "category" in any order) and returns the recorded video. contentLength is
// the request's declared length, or -1. The staged file is removed before
// Ingest returns on every path.
func (o *Orchestrator) Ingest(ctx context.Context, ownerID primitive.ObjectID, contentLength int64, mr *multipart.Reader) (video *domain.Video, err error) {
	r := &run{state: StateReceived, log: o.log.With().Str("owner_id", ownerID.Hex()).Logger()}

	var sf *StagedFile
	release := func() {}
	defer func() { release() }()
	defer func() {
		if err != nil {
			o.fail(r, err)
		}
	}()

	if contentLength > o.MaxRequestBytes() {
		return nil, admissionError(ErrTooLarge, fmt.Sprintf("limit is %d bytes", o.admission.MaxBytes()))
	}

	req := domain.UploadRequest{OwnerID: ownerID}
	var title, category string
	var sawTitle bool

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return nil, classifyBodyError(perr)
		}

		switch part.FormName() {
		case "video":
			if sf != nil {
				part.Close()
				return nil, admissionError(ErrInvalidField, "only one video file per upload")
			}
			meta := FileMeta{FileName: part.FileName(), ContentType: part.Header.Get("Content-Type"), DeclaredSize: -1}
			if err := o.admit(ctx, meta); err != nil {
				part.Close()
				return nil, err
			}
			r.advance(StateAdmitted)

			sf, err = o.stage(ctx, part, meta.ContentType)
			part.Close()
			if err != nil {
				return nil, err
			}
			release = o.cleanup.Guard(sf)
			req.FileName = meta.FileName
			r.advance(StateStaged)
			if err := o.admission.AdmitContent(sf.DetectedMimeType); err != nil {
				return nil, err
			}

		case "title", "description", "category":
			value, ferr := readField(part)
			part.Close()
			if ferr != nil {
				return nil, classifyBodyError(ferr)
			}
			switch part.FormName() {
			case "title":
				title, sawTitle = value, true
				if strings.TrimSpace(title) == "" {
					return nil, admissionError(ErrMissingField, "title is required")
				}
			case "description":
				req.Description = value
			case "category":
				category = value
				if _, ok := domain.ParseCategory(strings.TrimSpace(category)); !ok {
					return nil, admissionError(ErrInvalidField, fmt.Sprintf("unknown category %q", category))
				}
			}

		default:
			part.Close()
		}
	}

	if sf == nil {
		return nil, admissionError(ErrMissingField, "video file is required")
	}
	if !sawTitle {
		return nil, admissionError(ErrMissingField, "title is required")
	}
	req.Title = title
	if req.Category, err = o.admission.AdmitFields(title, category); err != nil {
		return nil, err
	}

	asset, err := o.upload(ctx, sf)
	// the staged bytes are no longer needed once the remote call returns
	release()
	if err != nil {
		return nil, err
	}
	r.advance(StateRemoteUploaded)

	// The remote object exists now, so a client hang-up must not stop the
	// record from being written.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	video, err = o.record(recordCtx, asset, req, sf)
	cancel()
	if err != nil {
		o.obs.OrphanedAsset()
		r.log.Error().
			Err(err).
			Str("event", "orphaned_remote_asset").
			Str("public_id", asset.PublicID).
			Str("object_key", asset.ObjectKey).
			Msg("remote asset has no metadata record")
		return nil, err
	}
	r.advance(StateRecorded)

	r.advance(StateCompleted)
	r.log.Info().
		Str("video_id", video.ID.Hex()).
		Str("public_id", video.PublicID).
		Int64("bytes", sf.SizeBytes).
		Msg("upload completed")
	return video, nil
}

func (o *Orchestrator) fail(r *run, err error) {
	from := r.state
	r.advance(StateFailed)

	stage, code := StageStaging, errorCodes[ErrIOFailure]
	var pe *Error
	if errors.As(err, &pe) {
		stage, code = pe.Stage, pe.Code()
	}
	o.obs.StageFailed(stage, code)

	ev := r.log.Warn()
	if stage != StageAdmission {
		ev = r.log.Error()
	}
	ev.Err(err).Str("stage", string(stage)).Str("state", string(from)).Msg("upload failed")
}

func (o *Orchestrator) admit(ctx context.Context, meta FileMeta) error {
	_, span := o.tracer.Start(ctx, "pipeline.admit", trace.WithAttributes(
		attribute.String("upload.content_type", meta.ContentType),
	))
	defer span.End()
	start := time.Now()
	if err := o.admission.Admit(meta); err != nil {
		endSpan(span, err)
		return err
	}
	o.obs.StageCompleted(StageAdmission, time.Since(start))
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, part io.Reader, contentType string) (*StagedFile, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.stage")
	defer span.End()
	start := time.Now()
	sf, err := o.staging.Stage(ctx, newLimitReader(part, o.admission.MaxBytes()), contentType)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = classifyBodyError(mbe)
		}
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("upload.bytes", sf.SizeBytes))
	o.obs.BytesStaged(sf.SizeBytes)
	o.obs.StageCompleted(StageStaging, time.Since(start))
	return sf, nil
}

func (o *Orchestrator) upload(ctx context.Context, sf *StagedFile) (*domain.RemoteAsset, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.remote_upload")
	defer span.End()
	start := time.Now()
	asset, err := o.uploader.Upload(ctx, sf)
	if err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			err = &Error{Stage: StageRemote, Kind: ErrRemoteUploadFailure, Err: err}
		}
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("upload.public_id", asset.PublicID))
	o.obs.StageCompleted(StageRemote, time.Since(start))
	return asset, nil
}

func (o *Orchestrator) record(ctx context.Context, asset *domain.RemoteAsset, req domain.UploadRequest, sf *StagedFile) (*domain.Video, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.record", trace.WithAttributes(
		attribute.String("upload.public_id", asset.PublicID),
	))
	defer span.End()
	start := time.Now()
	video, err := o.recorder.Record(ctx, asset, req, sf)
	if err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			err = &Error{Stage: StagePersistence, Kind: ErrPersistenceFailure, Err: err}
		}
		endSpan(span, err)
		return nil, err
	}
	o.obs.StageCompleted(StagePersistence, time.Since(start))
	return video, nil
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxFieldBytes {
		return "", admissionError(ErrInvalidField, fmt.Sprintf("field %q is too long", part.FormName()))
	}
	return string(b), nil
}

// classifyBodyError maps a failure reading the request body to a pipeline error.
func classifyBodyError(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return admissionError(ErrTooLarge, fmt.Sprintf("limit is %d bytes", mbe.Limit))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.Canceled) {
		return &Error{Stage: StageStaging, Kind: ErrIOFailure, Err: err}
	}
	return admissionError(ErrInvalidField, "malformed multipart body: "+err.Error())
}
