package pipeline

import (
	"alcyxob/navistream/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	stagingSuffix = ".upload"
	sniffLen      = 3072
)

// StagedFile is a staging artifact owned by one pipeline run.
type StagedFile struct {
	domain.StagedFile
	released atomic.Bool
}

// StagingStore writes raw upload bytes to uniquely named files in one directory.
type StagingStore struct {
	dir string
	log zerolog.Logger
}

func NewStagingStore(dir string, logger zerolog.Logger) (*StagingStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &StagingStore{dir: dir, log: logger.With().Str("component", "staging").Logger()}, nil
}

func (s *StagingStore) Dir() string { return s.dir }

// Stage copies r to a new staging file. On any failure the partial file is
// removed before returning. Errors already classified by the reader (such as
// ErrTooLarge from the size limiter) are returned unchanged.
func (s *StagingStore) Stage(ctx context.Context, r io.Reader, declaredMime string) (*StagedFile, error) {
	path := filepath.Join(s.dir, uuid.NewString()+stagingSuffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, &Error{Stage: StageStaging, Kind: ErrIOFailure, Err: err}
	}

	sniff := &prefixBuffer{limit: sniffLen}
	n, err := io.Copy(f, io.TeeReader(ctxReader{ctx: ctx, r: r}, sniff))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.remove(path)
		var pe *Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &Error{Stage: StageStaging, Kind: ErrIOFailure, Err: err}
	}

	sf := &StagedFile{StagedFile: domain.StagedFile{
		LocalPath:        path,
		SizeBytes:        n,
		DeclaredMimeType: NormalizeContentType(declaredMime),
		DetectedMimeType: mimetype.Detect(sniff.buf).String(),
	}}
	s.log.Debug().Str("path", path).Int64("bytes", n).Str("detected", sf.DetectedMimeType).Msg("staged upload")
	return sf, nil
}

// Release deletes the staged file. Safe to call more than once and on files
// that were already removed; failures are logged, never returned.
func (s *StagingStore) Release(sf *StagedFile) {
	if sf == nil || !sf.released.CompareAndSwap(false, true) {
		return
	}
	s.remove(sf.LocalPath)
}

func (s *StagingStore) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove staging file")
	}
}

// SweepStale removes staging files last modified before now-olderThan.
func (s *StagingStore) SweepStale(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), stagingSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to sweep staging file")
			continue
		}
		removed++
	}
	return removed, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// prefixBuffer keeps the first limit bytes written to it.
type prefixBuffer struct {
	buf   []byte
	limit int
}

func (p *prefixBuffer) Write(b []byte) (int, error) {
	if room := p.limit - len(p.buf); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		p.buf = append(p.buf, b[:room]...)
	}
	return len(b), nil
}

// limitReader fails with ErrTooLarge once more than max bytes have been read.
type limitReader struct {
	r    io.Reader
	max  int64
	read int64
}

func newLimitReader(r io.Reader, max int64) *limitReader {
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	// allow one byte past the limit so exactly-max files are accepted
	if remaining := l.max + 1 - l.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, admissionError(ErrTooLarge, fmt.Sprintf("limit is %d bytes", l.max))
	}
	return n, err
}
