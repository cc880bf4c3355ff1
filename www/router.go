package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kitchenedge/engine"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	hub      *EventHub
	bridge   *HostBridge
	bindings *bindingStore
}

// NewRouter creates the chi router and returns it along with a stop function.
func NewRouter(eng *engine.Engine, hub *EventHub, bridge *HostBridge) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		hub:      hub,
		bridge:   bridge,
		bindings: newBindingStore(eng.AppConfig().Web.SessionSecret),
	}
	hub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/binding", h.apiGetBinding)
		r.Put("/binding", h.apiSetBinding)
		r.Delete("/binding", h.apiClearBinding)

		r.Get("/displays", h.apiListDisplays)
		r.Route("/displays/{display}", func(r chi.Router) {
			r.Post("/start", h.apiStartDisplay)
			r.Post("/stop", h.apiStopDisplay)
			r.Get("/settings", h.apiGetSettings)
			r.Put("/settings", h.apiSaveSettings)

			r.Get("/events", h.handleEvents)
			r.Get("/orders", h.apiListOrders)
			r.Post("/orders/{orderID}/transition", h.apiTransition)
			r.Post("/orders/{orderID}/print", h.apiPrint)
			r.Post("/prompts/{promptID}/accept", h.apiAcceptPrompt)
			r.Post("/prompts/{promptID}/dismiss", h.apiDismissPrompt)
			r.Post("/print-jobs/{jobID}/ack", h.apiAckPrintJob)
		})
	})

	return r, hub.Stop
}
