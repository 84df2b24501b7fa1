// Package handler exposes the media relay over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"platewatch/internal/relay"
	"platewatch/internal/transport/http/shared"
	dErrors "platewatch/pkg/domain-errors"
)

// Streamer relays one upload to the detection backend.
type Streamer interface {
	Relay(ctx context.Context, upload io.Reader, filename string, w http.ResponseWriter) error
}

// Handler serves the media relay endpoint.
type Handler struct {
	logger   *slog.Logger
	streamer Streamer
}

func New(streamer Streamer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, streamer: streamer}
}

// Register mounts the relay routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/predict", h.handlePredict)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)

	// Read the multipart stream part by part instead of ParseMultipartForm
	// so large uploads are never buffered by the form parser.
	mr, err := r.MultipartReader()
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "No video file provided"))
		return
	}

	part, err := findMediaPart(mr)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "No video file provided"))
		return
	}
	defer part.Close()

	if err := h.streamer.Relay(ctx, part, part.FileName(), w); err != nil {
		var midStream *relay.MidStreamError
		if errors.As(err, &midStream) {
			// Bytes already reached the caller; terminating the
			// connection is all that is left.
			h.logger.ErrorContext(ctx, "relay interrupted mid-stream",
				"request_id", requestID,
				"bytes_written", midStream.Written,
				"error", midStream.Err.Error(),
			)
			panic(http.ErrAbortHandler)
		}
		h.logger.ErrorContext(ctx, "relay failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
	}
}

// findMediaPart scans the multipart stream for the media file field. The
// upstream UI posts it as "video"; "file" is accepted for manual calls.
func findMediaPart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		name := part.FormName()
		if (name == "video" || name == "file") && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}
