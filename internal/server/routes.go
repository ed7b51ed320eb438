// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes returns the application handler: health, stats and the
// websocket endpoint, with CORS applied for the configured origins.
func SetupRoutes(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/stats", StatsHandler(hub))
	mux.HandleFunc("/ws", WebSocketHandler(hub))

	return corsPolicy().Handler(mux)
}

// corsPolicy mirrors the websocket origin allow-list for plain HTTP requests.
func corsPolicy() *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc: isOriginAllowed,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost},
	})
}
