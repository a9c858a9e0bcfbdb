package route

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (s *Server) ruleRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.getRules)
	r.Get("/filter", s.getFilter)
	r.Put("/filter", s.updateFilter)
	r.Post("/invalidate", s.invalidate)
	return r
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	view, err := s.hub.RuleAndProvider(r.Context(), s.controller)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

type filterSchema struct {
	Text *string `json:"text"`
}

func (s *Server) getFilter(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"text": s.filter.FilterText()})
}

func (s *Server) updateFilter(w http.ResponseWriter, r *http.Request) {
	req := filterSchema{}
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Text == nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrBadRequest)
		return
	}

	s.filter.SetFilterText(*req.Text)
	render.NoContent(w, r)
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	s.hub.InvalidateQueries()()
	render.NoContent(w, r)
}
