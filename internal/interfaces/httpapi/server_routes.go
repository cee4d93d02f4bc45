package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerQueueRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/queue", handler.Enqueue)
	mux.HandleFunc("DELETE /v1/queue/{playerID}", handler.LeaveQueue)
	mux.HandleFunc("GET /v1/queue/{playerID}", handler.GetQueueStatus)
}

func registerMatchRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatch)
	mux.HandleFunc("POST /v1/matches/{matchID}/accept", handler.AcceptMatch)
	mux.HandleFunc("POST /v1/matches/{matchID}/decline", handler.DeclineMatch)
	mux.HandleFunc("POST /v1/matches/{matchID}/cancel", handler.CancelMatch)
}

func registerPlayerRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/players/{playerID}/matches/active", handler.ListActiveMatches)
	mux.HandleFunc("GET /v1/players/{playerID}/matches", handler.ListMatchHistory)
	mux.HandleFunc("GET /v1/players/{playerID}/events", handler.ConnectEvents)
}
