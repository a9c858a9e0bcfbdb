package route

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/Dreamacro/clash-dashboard/api"
	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/hub"
	"github.com/Dreamacro/clash-dashboard/log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FilterStore is the rule filter text edited through the API
type FilterStore interface {
	FilterText() string
	SetFilterText(text string) bool
}

type Server struct {
	hub        *hub.Hub
	filter     FilterStore
	controller C.APIConfig
	secret     string
	gatherer   prometheus.Gatherer
}

// New serves the hub for one controller. gatherer may be nil to disable /metrics.
func New(h *hub.Hub, filter FilterStore, controller C.APIConfig, secret string, gatherer prometheus.Gatherer) *Server {
	return &Server{
		hub:        h,
		filter:     filter,
		controller: controller,
		secret:     secret,
		gatherer:   gatherer,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	cors := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})

	r.Use(cors.Handler)
	r.Group(func(r chi.Router) {
		r.Use(s.authentication)

		r.Get("/", hello)
		r.Get("/version", version)
		r.Mount("/rules", s.ruleRouter())
		r.Mount("/providers/rules", s.ruleProviderRouter())
		if s.gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})
	return r
}

// Start blocks until the listener fails or ctx is done
func (s *Server) Start(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Infoln("RESTful API listening at: %s", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authentication(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		text := strings.SplitN(header, " ", 2)

		hasInvalidHeader := text[0] != "Bearer"
		hasInvalidSecret := len(text) != 2 || text[1] != s.secret
		if hasInvalidHeader || hasInvalidSecret {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func hello(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"hello": C.Name})
}

func version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"version": C.Version})
}

// renderError maps controller and hub errors onto the API error shape
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	se := &api.StatusError{}
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		status = http.StatusNotFound
	case errors.Is(err, hub.ErrProvidersNotLoaded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	log.Warnln("[API] %s %s: %s", r.Method, r.URL.Path, err.Error())
	render.Status(r, status)
	render.JSON(w, r, newError(err.Error()))
}

func getEscapeParam(r *http.Request, paramName string) string {
	param := chi.URLParam(r, paramName)
	if newParam, err := url.PathUnescape(param); err == nil {
		param = newParam
	}
	return param
}
