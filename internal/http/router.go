package httpserver

import (
	"net/http"

	"voltgrid/internal/http/handlers"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	DeviceModel   *handlers.DeviceModelHandler
	Availability  *handlers.AvailabilityHandler
	StationAdmin  *handlers.StationAdminHandler
	HealthHandler http.HandlerFunc
}

// NewRouter wires HTTP routes. Admin endpoints go through authMiddleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	mux.Handle("/internal/ocpp/reports", method(http.MethodPost, http.HandlerFunc(deps.DeviceModel.HandleReport)))
	mux.Handle("/internal/ocpp/set-variable-results", method(http.MethodPost, http.HandlerFunc(deps.DeviceModel.HandleSetVariableResult)))
	mux.Handle("/internal/ocpp/connector-status", method(http.MethodPost, http.HandlerFunc(deps.Availability.HandleConnectorStatus)))

	mux.Handle("/attributes", method(http.MethodGet, http.HandlerFunc(deps.DeviceModel.HandleAttributes)))
	mux.Handle("/attributes/pending", method(http.MethodGet, http.HandlerFunc(deps.DeviceModel.HandlePending)))
	mux.Handle("/stations/availability", method(http.MethodGet, http.HandlerFunc(deps.Availability.HandleAvailability)))

	mux.Handle("/admin/stations/password", method(http.MethodPut, authMiddleware(http.HandlerFunc(deps.StationAdmin.HandleSetPassword))))
	mux.Handle("/admin/attributes/pending", method(http.MethodPut, authMiddleware(http.HandlerFunc(deps.DeviceModel.HandleFlagPending))))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
