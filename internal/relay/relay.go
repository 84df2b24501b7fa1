// Package relay forwards media uploads to the detection backend and pipes
// the streamed response back to the caller. Neither the upload nor the
// response is ever held in memory in full.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"platewatch/internal/platform/metrics"
	dErrors "platewatch/pkg/domain-errors"
)

// backendFieldName is the multipart field the detection backend expects.
const backendFieldName = "video"

// MidStreamError marks a failure after response bytes were already sent to
// the caller. The handler can only terminate the connection at that point;
// partial content cannot be recovered.
type MidStreamError struct {
	Written int64
	Err     error
}

func (e *MidStreamError) Error() string {
	return fmt.Sprintf("relay interrupted after %d bytes: %v", e.Written, e.Err)
}

func (e *MidStreamError) Unwrap() error { return e.Err }

// Streamer relays uploads to the detection backend.
type Streamer struct {
	backendURL string
	client     *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	spoolDir   string
}

type Option func(*Streamer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Streamer) { s.metrics = m }
}

// WithHTTPClient overrides the backend client; the default bounds dial and
// header latency but leaves the body deadline open since processed video
// responses can stream for a long time.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Streamer) { s.client = client }
}

// WithSpoolDir sets the directory for request-scoped upload spool files.
// Defaults to the OS temp dir.
func WithSpoolDir(dir string) Option {
	return func(s *Streamer) { s.spoolDir = dir }
}

func New(backendURL string, opts ...Option) (*Streamer, error) {
	if backendURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}

	s := &Streamer{
		backendURL: backendURL,
		logger:     slog.Default(),
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 5 * time.Minute,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Relay spools the upload, forwards it to the backend as a multipart POST,
// and writes the backend's response to w as it arrives. Pre-stream failures
// return a relay_failure domain error so the handler can still answer with
// JSON; failures after the first byte return a *MidStreamError.
func (s *Streamer) Relay(ctx context.Context, upload io.Reader, filename string, w http.ResponseWriter) error {
	if s.metrics != nil {
		s.metrics.RelayRequests.Inc()
	}

	spool, size, err := s.spoolUpload(upload)
	if err != nil {
		s.fail()
		return dErrors.Wrap(err, dErrors.CodeRelayFailure, "spool upload")
	}
	// The spool file lives exactly as long as this request.
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	resp, err := s.post(ctx, spool, filename)
	if err != nil {
		s.fail()
		return dErrors.Wrap(err, dErrors.CodeRelayFailure, "detection backend unreachable")
	}
	defer resp.Body.Close()

	s.logger.InfoContext(ctx, "relaying backend response",
		"upload_bytes", size,
		"backend_status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	// Forward the backend's declared content headers verbatim.
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if s.metrics != nil {
		s.metrics.RelayedBytes.Add(float64(written))
	}
	if err != nil {
		s.fail()
		return &MidStreamError{Written: written, Err: err}
	}
	return nil
}

// spoolUpload copies the upload to a request-scoped temp file and rewinds
// it. Spooling keeps the client read decoupled from the backend write and
// caps memory at the copy buffer.
func (s *Streamer) spoolUpload(upload io.Reader) (*os.File, int64, error) {
	spool, err := os.CreateTemp(s.spoolDir, "platewatch-upload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool file: %w", err)
	}

	size, err := io.Copy(spool, upload)
	if err == nil {
		_, err = spool.Seek(0, io.SeekStart)
	}
	if err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, 0, fmt.Errorf("write spool file: %w", err)
	}
	return spool, size, nil
}

// post streams the spooled upload to the backend as a multipart form. The
// multipart body is produced through a pipe so the request streams too.
func (s *Streamer) post(ctx context.Context, spool *os.File, filename string) (*http.Response, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile(backendFieldName, filename)
		if err == nil {
			_, err = io.Copy(part, spool)
		}
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.backendURL, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("caller disconnected: %w", err)
		}
		return nil, fmt.Errorf("post to backend: %w", err)
	}
	return resp, nil
}

func (s *Streamer) fail() {
	if s.metrics != nil {
		s.metrics.RelayFailures.Inc()
	}
}
