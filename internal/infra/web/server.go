package web

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"webshop-payments/internal/usecase"
)

// Server exposes the inbound callback surface: three logical endpoints per
// provider family (return, abort, report), plus health/metrics and the
// server-side start endpoint for the shop frontend.
type Server struct {
	payUC  usecase.PaymentUseCase
	secret string
	log    *zerolog.Logger
}

func NewServer(payUC usecase.PaymentUseCase, callbackSecret string, logger *zerolog.Logger) *Server {
	return &Server{payUC: payUC, secret: callbackSecret, log: logger}
}

func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Server-side API for the shop frontend.
	r.Post("/internal/payments/{paymentID}/start", s.handleStart)

	// Provider callbacks. The return leg carries the per-payment key
	// fragment; abort intentionally does not; report is the
	// server-to-server push.
	r.Route("/api/{family}/{paymentID}", func(r chi.Router) {
		r.Get("/return/{key}", s.handleReturn)
		r.Get("/abort", s.handleAbort)
		r.Get("/report", s.handleReport)
		r.Post("/report", s.handleReport)
	})

	return r
}

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Success{{else}}Result{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
</style>
</head>
<body>
<div class="card">
<h1 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Payment received{{else}}Payment not completed{{end}}</h1>
<p>{{.Message}}</p>
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, status int, ok bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, struct {
		OK      bool
		Message string
	}{OK: ok, Message: message})
}
