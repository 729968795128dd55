package server

import (
	"encoding/json"
	"net/http"

	"github.com/vocadrill/vocadrill/internal/content"
)

// Wire forms for the course catalogue.

type courseResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	TargetLang string         `json:"target_lang"`
	NativeLang string         `json:"native_lang"`
	Packs      []packResponse `json:"packs"`
}

type packResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	ImageURL string            `json:"image_url,omitempty"`
	Chapters []chapterResponse `json:"chapters"`
}

type chapterResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// handleCourses lists the course catalogue so the client can offer chapter
// selection before opening a drill.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.Courses(r.Context())
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "content", "courses")
		s.logger.Error("course listing failed", "err", err)
		http.Error(w, "content store unavailable", http.StatusBadGateway)
		return
	}

	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, courseToWire(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func courseToWire(c content.Course) courseResponse {
	cr := courseResponse{
		ID:         c.ID,
		Name:       c.Name,
		TargetLang: c.TargetLang,
		NativeLang: c.NativeLang,
		Packs:      make([]packResponse, 0, len(c.Packs)),
	}
	for _, p := range c.Packs {
		pr := packResponse{
			ID:       p.ID,
			Name:     p.Name,
			ImageURL: p.ImageURL,
			Chapters: make([]chapterResponse, 0, len(p.Chapters)),
		}
		for _, ch := range p.Chapters {
			pr.Chapters = append(pr.Chapters, chapterResponse{ID: ch.ID, Name: ch.Name, Order: ch.Order})
		}
		cr.Packs = append(cr.Packs, pr)
	}
	return cr
}

// suggestRequest asks for an example sentence for a vocabulary item being
// authored.
type suggestRequest struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	TargetLang  string `json:"target_lang"`
	NativeLang  string `json:"native_lang"`
}

type suggestResponse struct {
	Example     string `json:"example"`
	Translation string `json:"translation"`
}

// handleSuggest generates an example sentence and its translation for a
// word/translation pair. 503 when no suggestion backend is configured.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		http.Error(w, "suggestions not configured", http.StatusServiceUnavailable)
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Word == "" || req.Translation == "" {
		http.Error(w, "word and translation are required", http.StatusBadRequest)
		return
	}

	sug, err := s.suggester.Suggest(r.Context(), req.Word, req.Translation, req.TargetLang, req.NativeLang)
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "suggest", "completion")
		s.logger.Error("suggestion failed", "word", req.Word, "err", err)
		http.Error(w, "suggestion backend failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, suggestResponse{
		Example:     sug.Example,
		Translation: sug.Translation,
	})
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
