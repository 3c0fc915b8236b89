package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/web/templates"
)

// exportDateLayout is the accepted format of the export ?date= parameter.
const exportDateLayout = "2006-01-02"

// handleStatus renders the landing page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.Counts(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	kinds := s.service.ListKinds()
	rows := make([]templates.KindStatus, len(kinds))
	for i, info := range kinds {
		rows[i] = templates.KindStatus{Key: info.Key, Label: info.Label, Count: counts[info.Key]}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Status(s.cfg.App.Version, rows).Render(r.Context(), w); err != nil {
		slog.Error("render status page", "error", err)
	}
}

// handlePing reports liveness plus the record count of every kind.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.Counts(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "counts": counts})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.cfg.App.Version})
}

// handleFactoryReset clears every kind. The body must be {"confirm": true}.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if !gjson.GetBytes(body, "confirm").Bool() {
		respondError(w, r, core.ErrConfirmationRequired, 0)
		return
	}

	if err := s.reset.FactoryReset(r.Context()); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// handleList returns every record of a kind, or its CSV export when the
// path ends in ".csv".
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if base, ok := strings.CutSuffix(kind, ".csv"); ok {
		s.handleExport(w, r, base)
		return
	}

	coll, err := s.service.Collection(kind)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	records, err := coll.List(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleUpsert serves both POST /api/{kind} and PUT /api/{kind}/{id}.
// The path id, when present, overrides any id in the body.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	coll, err := s.service.Collection(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	payload, err := core.ParsePayload(body)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		payload = payload.WithID(id)
	}

	rec, err := coll.Upsert(r.Context(), payload)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	coll, err := s.service.Collection(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	rec, err := coll.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	coll, err := s.service.Collection(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	id := chi.URLParam(r, "id")
	deleted, err := coll.Remove(r.Context(), id)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if !deleted {
		respondError(w, r, fmt.Errorf("remove %s: %w", id, core.ErrNotFound), 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	coll, err := s.service.Collection(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if err := coll.Clear(r.Context()); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleExport streams a kind's CSV projection as a download.
// The ETag is the xxhash of the body, so unchanged data yields 304.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, kind string) {
	coll, err := s.service.Collection(kind)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	date := time.Now().Format(exportDateLayout)
	if q := r.URL.Query().Get("date"); q != "" {
		if _, err := time.Parse(exportDateLayout, q); err != nil {
			respondError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrInvalidPayload), 0)
			return
		}
		date = q
	}

	body, err := coll.Export(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.csv"`, kind, date))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("write export", "kind", kind, "error", err)
	}
}

// readBody reads a request body capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", core.ErrInvalidPayload, tooLarge.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
