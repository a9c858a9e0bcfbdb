package route

import (
	"context"
	"net/http"

	"github.com/Dreamacro/clash-dashboard/rule/provider"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (s *Server) ruleProviderRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.getRuleProviders)
	r.Put("/", s.updateRuleProviders)

	r.Route("/{name}", func(r chi.Router) {
		r.Use(parseProviderName, s.findRuleProviderByName)
		r.Get("/", s.getRuleProvider)
		r.Put("/", s.updateRuleProvider)
	})
	return r
}

func (s *Server) getRuleProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.hub.RuleProviderQuery(r.Context(), s.controller)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, render.M{
		"providers": providers,
		"updating":  s.hub.UpdateAllRuleProviderItems(s.controller).IsPending(),
	})
}

func (s *Server) updateRuleProviders(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.UpdateAllRuleProviderItems(s.controller).Do(r.Context()); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

type ruleProviderInfo struct {
	*provider.RuleProvider
	Updating bool `json:"updating"`
}

func (s *Server) getRuleProvider(w http.ResponseWriter, r *http.Request) {
	rp := r.Context().Value(CtxKeyProvider).(*provider.RuleProvider)
	render.JSON(w, r, ruleProviderInfo{
		RuleProvider: rp,
		Updating:     s.hub.UpdateRuleProviderItem(rp.Name, s.controller).IsPending(),
	})
}

func (s *Server) updateRuleProvider(w http.ResponseWriter, r *http.Request) {
	name := r.Context().Value(CtxKeyProviderName).(string)
	if err := s.hub.UpdateRuleProviderItem(name, s.controller).Do(r.Context()); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func parseProviderName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := getEscapeParam(r, "name")
		ctx := context.WithValue(r.Context(), CtxKeyProviderName, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) findRuleProviderByName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Context().Value(CtxKeyProviderName).(string)
		providers, err := s.hub.RuleProviderQuery(r.Context(), s.controller)
		if err != nil {
			renderError(w, r, err)
			return
		}

		rp, exist := providers.Get(name)
		if !exist {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyProvider, rp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
