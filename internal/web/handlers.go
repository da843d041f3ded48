package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// intent adapts a no-argument orchestrator intent. On success it answers with
// the snapshot published by the intent.
func (s *Server) intent(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, s.coach.Snapshot())
	}
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.coach.Snapshot())
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.coach.Report()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

type jobDescriptionRequest struct {
	Text *string `json:"text"`
}

func (s *Server) putJobDescription(w http.ResponseWriter, r *http.Request) {
	var req jobDescriptionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "job description too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == nil {
		respondError(w, http.StatusBadRequest, `missing "text"`)
		return
	}

	s.intent(func(ctx context.Context) error {
		return s.coach.SetJobDescription(ctx, *req.Text)
	})(w, r)
}
