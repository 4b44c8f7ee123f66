package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/docchat/internal/api/handlers"
	"github.com/nikhilbhutani/docchat/internal/api/middleware"
	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/rag"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/speech"
	"github.com/nikhilbhutani/docchat/internal/speech/stt"
	"github.com/nikhilbhutani/docchat/internal/summary"
	"github.com/nikhilbhutani/docchat/internal/summary/pdf"
)

// Services are the collaborators the routes are served by. They are built
// once at startup.
type Services struct {
	Documents   *document.Service
	Chat        *rag.ChatService
	Summaries   *summary.Service
	Renderer    *pdf.Renderer
	Transcriber stt.Transcriber
	Voice       *speech.Voice
	Sessions    session.Store
	Checks      map[string]handlers.Check
}

type Router struct {
	mux      *chi.Mux
	svc      Services
	origins  []string
	jwt      *auth.JWTMiddleware
	limiter  *middleware.RateLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func NewRouter(svc Services, jwtSecret string, origins []string, limiter *middleware.RateLimiter, m *metrics.Metrics, gatherer prometheus.Gatherer) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		svc:      svc,
		origins:  origins,
		jwt:      auth.NewJWTMiddleware(jwtSecret),
		limiter:  limiter,
		metrics:  m,
		gatherer: gatherer,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.origins))

	health := handlers.NewHealthHandler(rt.svc.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)
		if rt.limiter != nil {
			r.Use(rt.limiter.Limit)
		}

		docH := handlers.NewDocumentHandler(rt.svc.Documents)
		r.Route("/doc", func(r chi.Router) {
			r.Post("/upload-document/{session_id}", docH.Upload)
			r.Delete("/delete-document/{doc_id}/{session_id}", docH.Delete)
			r.Get("/list-documents/{session_id}", docH.List)
			r.Get("/debug-chunks/{doc_id}/{session_id}", docH.DebugChunks)
		})

		chatH := handlers.NewChatHandler(rt.svc.Chat, rt.svc.Transcriber, rt.svc.Voice, rt.svc.Summaries, rt.svc.Renderer)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/ask/{session_id}", chatH.Ask)
			r.Post("/summarize/{session_id}", chatH.Summarize)
			r.Post("/summarize-audio/{session_id}", chatH.SummarizeAudio)
			r.Get("/history/{session_id}", chatH.History)
		})

		sessionH := handlers.NewSessionHandler(rt.svc.Sessions)
		r.Route("/session", func(r chi.Router) {
			r.Get("/get-user-sessions", sessionH.List)
			r.Get("/get-next-session-id", sessionH.NextID)
		})
	})

	return r
}
