package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/artwork"
	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/stats"
	"github.com/DoyleJ11/loteria-backend/internal/ws"
)

type Deps struct {
	Hub      *hub.Hub
	Identity identity.Resolver
	Artwork  *artwork.Resolver
	Stats    stats.Store
	Logger   *zap.Logger
	WS       ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Identity == nil {
		d.Identity = identity.GuestResolver{}
	}
	if d.Stats == nil {
		d.Stats = stats.NopStore{}
	}
	if d.WS.Resolver == nil {
		d.WS.Resolver = d.Identity
	}
	if d.WS.Logger == nil {
		d.WS.Logger = d.Logger.Named("ws")
	}
	log := d.Logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.WS))

	r.Route("/lobbies", func(r chi.Router) {
		r.Post("/", CreateLobby(d.Hub, d.Identity, log))
		r.Get("/", ListLobbies(d.Hub, log))
		r.Get("/{code}", GetLobby(d.Hub, log))
	})
	if d.Artwork != nil {
		r.Get("/cards", ListCards(d.Artwork, log))
		r.Get("/cards/{id}", GetCard(d.Artwork, log))
	}
	r.Get("/players/{id}/stats", PlayerStats(d.Stats, log))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
