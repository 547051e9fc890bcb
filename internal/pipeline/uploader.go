package pipeline

import (
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/media"
	"alcyxob/navistream/internal/storage"
	"context"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const derivativeRequestTimeout = 30 * time.Second

// UploaderConfig controls where uploads land and how transient failures are retried.
type UploaderConfig struct {
	Folder string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries    uint64
	RetryInterval time.Duration
}

// RemoteUploader pushes staged files to object storage and requests derivatives.
type RemoteUploader struct {
	store     storage.FileStorage
	prober    media.Prober
	urls      URLBuilder
	requester derivative.Requester
	cfg       UploaderConfig
	obs       Observer
	log       zerolog.Logger

	pending sync.WaitGroup
	newID   func() string
}

func NewRemoteUploader(store storage.FileStorage, prober media.Prober, urls URLBuilder, requester derivative.Requester, cfg UploaderConfig, obs Observer, logger zerolog.Logger) *RemoteUploader {
	if prober == nil {
		prober = media.NopProber{}
	}
	if requester == nil {
		requester = derivative.NopRequester{}
	}
	if obs == nil {
		obs = NopObserver()
	}
	return &RemoteUploader{
		store:     store,
		prober:    prober,
		urls:      urls,
		requester: requester,
		cfg:       cfg,
		obs:       obs,
		log:       logger.With().Str("component", "remote_uploader").Logger(),
		newID:     uuid.NewString,
	}
}

// Upload stores sf under a fresh publicID. Only transient storage errors are
// retried. Derivative generation is requested in the background once the
// source object is durable.
func (u *RemoteUploader) Upload(ctx context.Context, sf *StagedFile) (*domain.RemoteAsset, error) {
	publicID := u.cfg.Folder + "/" + u.newID()
	objectKey := publicID + extensionFor(sf.DeclaredMimeType)
	log := u.log.With().Str("public_id", publicID).Logger()

	info, err := u.prober.Probe(ctx, sf.LocalPath)
	if err != nil {
		log.Warn().Err(err).Msg("media probe failed, recording zero duration")
		info = media.Info{}
	}

	attempt := 0
	op := func() error {
		attempt++
		f, err := os.Open(sf.LocalPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		err = u.store.PutObject(ctx, objectKey, f, sf.SizeBytes, sf.DeclaredMimeType)
		if err == nil {
			return nil
		}
		if !storage.IsTransient(err) {
			return backoff.Permanent(err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("transient storage error")
		return err
	}
	notify := func(error, time.Duration) { u.obs.RemoteRetry() }

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(u.cfg.RetryInterval), u.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, &Error{Stage: StageRemote, Kind: ErrRemoteUploadFailure, Err: err, Details: err.Error()}
	}

	asset := &domain.RemoteAsset{
		PublicID:        publicID,
		ObjectKey:       objectKey,
		SecureURL:       u.store.ObjectURL(objectKey),
		ThumbnailURL:    u.urls.ThumbnailURL(publicID),
		DurationSeconds: info.DurationSeconds,
		Width:           info.Width,
		Height:          info.Height,
	}
	log.Info().Int("attempts", attempt).Int64("bytes", sf.SizeBytes).Msg("remote upload complete")

	u.requestDerivatives(ctx, asset)
	return asset, nil
}

func (u *RemoteUploader) requestDerivatives(ctx context.Context, asset *domain.RemoteAsset) {
	job := derivative.Job{
		PublicID:    asset.PublicID,
		SourceKey:   asset.ObjectKey,
		Derivatives: u.urls.Descriptors(),
		RequestedAt: time.Now().UTC(),
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), derivativeRequestTimeout)
	u.pending.Add(1)
	go func() {
		defer u.pending.Done()
		defer cancel()
		if err := u.requester.Request(detached, job); err != nil {
			u.log.Warn().Err(err).Str("public_id", job.PublicID).Msg("derivative request failed")
		}
	}()
}

// Wait blocks until all background derivative requests have returned.
func (u *RemoteUploader) Wait() {
	u.pending.Wait()
}
