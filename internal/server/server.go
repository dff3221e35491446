// Package server exposes the tripfriend member and federated-login routes
// over chi.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/internal/memberstore"
	"github.com/MrEthical07/tripAuth/middleware"
	"github.com/MrEthical07/tripAuth/oauth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators the router serves. Bridge and Metrics are optional.
type Deps struct {
	Engine      *tripAuth.Engine
	Members     memberstore.Store
	Bridge      *oauth.Bridge
	Metrics     http.Handler
	Logger      logrus.FieldLogger
	CORSOrigins []string
	// APIPrefix is mounted in front of the /member routes, e.g. "/api/v1".
	APIPrefix string
	Now       func() time.Time
}

type Server struct {
	engine   *tripAuth.Engine
	members  memberstore.Store
	bridge   *oauth.Bridge
	cookies  *middleware.Cookies
	logger   logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time
	handler  http.Handler
}

func New(deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Members == nil {
		return nil, errors.New("server requires an engine and a member store")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cfg := deps.Engine.Config()
	s := &Server{
		engine:   deps.Engine,
		members:  deps.Members,
		bridge:   deps.Bridge,
		cookies:  middleware.NewCookies(cfg.Cookie),
		logger:   deps.Logger,
		validate: validator.New(),
		now:      deps.Now,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)
	r.Use(middleware.ClientIP)

	auth := middleware.NewChain(
		middleware.NewDeletionGate(deps.Engine, cfg, deps.Logger),
		middleware.NewAuthenticator(deps.Engine, cfg),
		middleware.StageFunc(recordIdentity),
	)

	r.Get("/healthz", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	prefix := "/" + strings.Trim(deps.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	r.Route(prefix+"/member", func(r chi.Router) {
		// refresh must accept an expired access token, so it stays outside the chain
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.Then)
			r.Use(middleware.RequireIdentity)

			r.Post("/restore", s.handleRestore)
			r.Delete("/delete", s.handleDelete)
			r.Get("/me", s.handleMe)
			r.With(middleware.RequireRole(tripAuth.RoleAdmin)).Get("/all", s.handleAll)
		})
	})

	if deps.Bridge != nil {
		r.Get("/oauth2/authorization/{provider}", func(w http.ResponseWriter, r *http.Request) {
			s.bridge.Start(w, r, chi.URLParam(r, "provider"))
		})
		r.Get("/login/oauth2/code/{provider}", func(w http.ResponseWriter, r *http.Request) {
			s.bridge.Callback(w, r, chi.URLParam(r, "provider"))
		})
	}

	s.handler = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Cookies returns the cookie writer shared with the oauth bridge.
func (s *Server) Cookies() *middleware.Cookies {
	return s.cookies
}
