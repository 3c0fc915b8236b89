package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// uploadMemory is how much of a multipart upload is held in memory before
// parts spill to temporary files.
const uploadMemory = 8 << 20

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := s.service.ListAttachments(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, atts)
}

// handleUploadAttachments stores every "files" part of a multipart form
// against the record.
func (s *Server) handleUploadAttachments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxBytes)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", core.ErrInvalidPayload, tooLarge.Limit), 0)
			return
		}
		respondError(w, r, fmt.Errorf("%w: expected a multipart form: %v", core.ErrInvalidPayload, err), 0)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	uploads := make([]core.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(w, r, fmt.Errorf("open upload %s: %w", fh.Filename, err), 0)
			return
		}
		defer f.Close()
		uploads = append(uploads, core.Upload{Name: fh.Filename, Mime: fh.Header.Get("Content-Type"), Body: f})
	}

	saved, err := s.service.AddAttachments(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"), uploads)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := s.service.Attachment(r.Context(), chi.URLParam(r, "attID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attID")
	deleted, err := s.service.DeleteAttachment(r.Context(), id)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if !deleted {
		respondError(w, r, fmt.Errorf("delete attachment %s: %w", id, core.ErrNotFound), 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleDownloadAttachment serves the file inline under its original name.
// Range and If-Modified-Since requests are handled by http.ServeContent.
func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	att, body, err := s.service.OpenAttachment(r.Context(), chi.URLParam(r, "attID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer body.Close()

	if att.Mime != "" {
		w.Header().Set("Content-Type", att.Mime)
	}
	if disp := mime.FormatMediaType("inline", map[string]string{"filename": att.Name}); disp != "" {
		w.Header().Set("Content-Disposition", disp)
	}
	http.ServeContent(w, r, att.Name, att.CreatedAt, body)
}
