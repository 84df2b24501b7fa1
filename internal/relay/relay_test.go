package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "platewatch/pkg/domain-errors"
)

// echoBackend returns a test server that parses the multipart upload and
// responds with the given payload and content type.
func echoBackend(t *testing.T, payload []byte, contentType string, gotUpload *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("video")
		if err != nil {
			t.Errorf("backend missing video field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if gotUpload != nil {
			data, err := io.ReadAll(file)
			require.NoError(t, err)
			*gotUpload = data
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(payload)
	}))
}

func newStreamer(t *testing.T, backendURL string) *Streamer {
	t.Helper()
	s, err := New(backendURL, WithSpoolDir(t.TempDir()))
	require.NoError(t, err)
	return s
}

func TestRelayPassThroughSmall(t *testing.T) {
	payload := []byte(`{"plates":["KA01AB1234"]}`)
	var uploaded []byte
	backend := echoBackend(t, payload, "application/json", &uploaded)
	defer backend.Close()

	s := newStreamer(t, backend.URL)
	rec := httptest.NewRecorder()

	err := s.Relay(context.Background(), bytes.NewReader([]byte("fake video bytes")), "clip.mp4", rec)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, []byte("fake video bytes"), uploaded, "upload must reach the backend unmodified")
}

func TestRelayPassThroughMultiMegabyte(t *testing.T) {
	payload := make([]byte, 8<<20)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	backend := echoBackend(t, payload, "video/mp4", nil)
	defer backend.Close()

	s := newStreamer(t, backend.URL)
	rec := httptest.NewRecorder()

	upload := make([]byte, 4<<20)
	_, err = rand.Read(upload)
	require.NoError(t, err)

	err = s.Relay(context.Background(), bytes.NewReader(upload), "clip.mp4", rec)
	require.NoError(t, err)

	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, len(payload), rec.Body.Len(), "no truncation")
	assert.True(t, bytes.Equal(payload, rec.Body.Bytes()), "byte-for-byte pass-through")
}

func TestRelayBackendUnreachable(t *testing.T) {
	s := newStreamer(t, "http://127.0.0.1:1/process_video")
	rec := httptest.NewRecorder()

	err := s.Relay(context.Background(), bytes.NewReader([]byte("x")), "clip.mp4", rec)
	assert.True(t, dErrors.Is(err, dErrors.CodeRelayFailure))
	assert.Zero(t, rec.Body.Len(), "no bytes sent to the caller on pre-stream failure")
}

func TestRelayBackendErrorStatusIsForwarded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unsupported codec"}`))
	}))
	defer backend.Close()

	s := newStreamer(t, backend.URL)
	rec := httptest.NewRecorder()

	err := s.Relay(context.Background(), bytes.NewReader([]byte("x")), "clip.mp4", rec)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"unsupported codec"}`, rec.Body.String())
}

func TestRelayMidStreamFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more bytes than are sent so the relay's copy fails
		// partway through.
		w.Header().Set("Content-Length", "1048576")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 1024))
	}))
	defer backend.Close()

	s := newStreamer(t, backend.URL)
	rec := httptest.NewRecorder()

	err := s.Relay(context.Background(), bytes.NewReader([]byte("x")), "clip.mp4", rec)

	var midStream *MidStreamError
	require.ErrorAs(t, err, &midStream)
	assert.EqualValues(t, 1024, midStream.Written)
}

func TestRelayCancelledContext(t *testing.T) {
	backend := echoBackend(t, []byte("ok"), "text/plain", nil)
	defer backend.Close()

	s := newStreamer(t, backend.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Relay(ctx, bytes.NewReader([]byte("x")), "clip.mp4", httptest.NewRecorder())
	assert.True(t, dErrors.Is(err, dErrors.CodeRelayFailure))
}

func TestRelaySpoolFileIsRemoved(t *testing.T) {
	backend := echoBackend(t, []byte("ok"), "text/plain", nil)
	defer backend.Close()

	spoolDir := t.TempDir()
	s, err := New(backend.URL, WithSpoolDir(spoolDir))
	require.NoError(t, err)

	err = s.Relay(context.Background(), bytes.NewReader([]byte("x")), "clip.mp4", httptest.NewRecorder())
	require.NoError(t, err)

	leftovers, err := filepath.Glob(filepath.Join(spoolDir, "*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "spool file must not outlive the request")
}

func TestRelaySpoolFileRemovedOnBackendFailure(t *testing.T) {
	spoolDir := t.TempDir()
	s, err := New("http://127.0.0.1:1/process_video", WithSpoolDir(spoolDir))
	require.NoError(t, err)

	_ = s.Relay(context.Background(), bytes.NewReader([]byte("x")), "clip.mp4", httptest.NewRecorder())

	leftovers, err := filepath.Glob(filepath.Join(spoolDir, "*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestNewRequiresBackendURL(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestRelayLargeUploadSpoolsToDisk(t *testing.T) {
	// Sanity check that multi-MB uploads flow through without the reader
	// being held in memory: the spool is a file, so this mainly guards
	// against accidental io.ReadAll regressions.
	var uploaded []byte
	backend := echoBackend(t, []byte("done"), "text/plain", &uploaded)
	defer backend.Close()

	upload := bytes.Repeat([]byte("0123456789abcdef"), 1<<18) // 4 MiB
	s := newStreamer(t, backend.URL)

	err := s.Relay(context.Background(), bytes.NewReader(upload), "clip.mp4", httptest.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, upload, uploaded)
}
