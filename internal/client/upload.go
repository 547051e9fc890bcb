package client

import (
	"alcyxob/navistream/internal/domain"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Progress is the number of file bytes handed to the transport so far.
type Progress struct {
	BytesSent  int64
	TotalBytes int64
}

// Percent is BytesSent/TotalBytes rounded to a whole percent.
func (p Progress) Percent() int {
	if p.TotalBytes <= 0 {
		return 0
	}
	return int(math.Round(float64(p.BytesSent) / float64(p.TotalBytes) * 100))
}

// Reporter receives a run of OnProgress calls and then exactly one of
// OnComplete or OnError.
type Reporter interface {
	OnProgress(Progress)
	OnComplete(*UploadResponse)
	OnError(error)
}

type nopReporter struct{}

func (nopReporter) OnProgress(Progress)        {}
func (nopReporter) OnComplete(*UploadResponse) {}
func (nopReporter) OnError(error)              {}

type UploadRequest struct {
	Title       string
	Description string
	Category    string
	FileName    string
	ContentType string
	File        io.Reader
	Size        int64
}

type UploadResponse struct {
	Message string       `json:"message"`
	Video   domain.Video `json:"video"`
}

// UploadFile opens path, sniffs its content type and uploads it.
func (c *Client) UploadFile(ctx context.Context, path, title, description, category string, rep Reporter) (*UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return c.Upload(ctx, UploadRequest{
		Title:       title,
		Description: description,
		Category:    category,
		FileName:    filepath.Base(path),
		ContentType: mt.String(),
		File:        f,
		Size:        info.Size(),
	}, rep)
}

// Upload streams the multipart form to /api/videos/upload. Text fields go
// first so the server can reject bad metadata before the file arrives.
func (c *Client) Upload(ctx context.Context, ur UploadRequest, rep Reporter) (*UploadResponse, error) {
	if rep == nil {
		rep = nopReporter{}
	}
	res, err := c.upload(ctx, ur, rep)
	if err != nil {
		rep.OnError(err)
		return nil, err
	}
	rep.OnComplete(res)
	return res, nil
}

func (c *Client) upload(ctx context.Context, ur UploadRequest, rep Reporter) (*UploadResponse, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	fields := [][2]string{
		{"title", ur.Title},
		{"description", ur.Description},
		{"category", ur.Category},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, ur.FileName))
	h.Set("Content-Type", ur.ContentType)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, err
	}
	trailer := "\r\n--" + mw.Boundary() + "--\r\n"

	body := io.MultiReader(
		&head,
		&progressReader{r: ur.File, total: ur.Size, report: rep.OnProgress},
		bytes.NewBufferString(trailer),
	)
	contentLength := int64(head.Len()) + ur.Size + int64(len(trailer))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/videos/upload", body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = contentLength
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug().Str("file", ur.FileName).Int64("size", ur.Size).Msg("starting upload")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp, "Upload failed")
	}
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	return &out, nil
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(Progress{BytesSent: p.sent, TotalBytes: p.total})
	}
	return n, err
}
