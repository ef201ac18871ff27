package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadgen-engine/internal/logger"
)

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	log := d.Log.With(logger.String("component", "http"))

	r := chi.NewRouter()
	r.Use(RequestID, Recover(log), AccessLog(log), Cors)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})

	r.Get("/health", HealthHandler{}.Health)

	th := TaskHandler{Tasks: d.Tasks}
	r.Post("/startScraping", th.StartScraping)
	r.Post("/startEmailCampaign", th.StartEmailCampaign)
	r.Post("/startWhatsappCampaign", th.StartWhatsAppCampaign)
	r.Get("/taskStatus/{task_id}", th.Status)
	r.Get("/tasks", th.List)

	if d.Hub != nil {
		r.Get("/events", EventsHandler{Hub: d.Hub}.ServeSSE)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	ch := ConfigHandler{Cfg: d.Config, Path: d.ConfigPath}
	r.Get("/config/path", ch.GetPath)
	r.Get("/config/validate", ch.Validate)

	if d.Secrets != nil {
		sh := SecretsHandler{Store: d.Secrets}
		r.Post("/api/secrets/senders", sh.Set)
		r.Delete("/api/secrets/senders", sh.Delete)
	}

	return r
}
