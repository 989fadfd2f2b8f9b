package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/decred/slog"
	"github.com/gorilla/mux"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/arenadb"
	"github.com/arenabets/fightarena/wager"
)

// API is the read/write HTTP surface next to the websocket feed.
type API struct {
	log slog.Logger
	srv *Server
	db  arenadb.DB
	hub *Hub
}

func NewAPI(log slog.Logger, srv *Server, db arenadb.DB, hub *Hub) *API {
	return &API{log: log, srv: srv, db: db, hub: hub}
}

// Router wires the API routes.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", a.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/history", a.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/bet", a.handleBet).Methods(http.MethodPost)
	r.HandleFunc("/api/report", a.handleReport).Methods(http.MethodPost)
	r.HandleFunc("/ws", a.hub.ServeWS)
	return r
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.srv.StateSnapshot())
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.db.Stats(r.Context())
	if err != nil {
		a.log.Errorf("stats query: %v", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be in [1, 500]")
			return
		}
		limit = n
	}
	hist, err := a.db.BattleHistory(r.Context(), limit)
	if err != nil {
		a.log.Errorf("history query: %v", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if hist == nil {
		hist = []arenadb.BattleRecord{}
	}
	writeJSON(w, http.StatusOK, hist)
}

type betRequest struct {
	Side      fightarena.Side `json:"side"`
	Amount    float64         `json:"amount"`
	Address   string          `json:"address"`
	SourceRef string          `json:"sourceRef"`
}

func (a *API) handleBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	bet, err := a.srv.PlaceBet(r.Context(), req.Side, req.Amount, req.Address, req.SourceRef)
	if err != nil {
		writeError(w, betStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type reportRequest struct {
	Seed   int64           `json:"seed"`
	Winner fightarena.Side `json:"winner"`
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := a.srv.ReportOutcome(req.Seed, req.Winner); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func betStatus(err error) int {
	switch {
	case errors.Is(err, wager.ErrPhaseClosed):
		return http.StatusConflict
	case errors.Is(err, wager.ErrDuplicateDeposit):
		return http.StatusConflict
	case errors.Is(err, wager.ErrInvalidSide), errors.Is(err, wager.ErrInvalidAmount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
