package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"highlowtrading/internal/action"
	"highlowtrading/internal/game"
	"highlowtrading/internal/store"
)

// Server exposes the game.Manager and store.Store over HTTP/WebSocket,
// adapted from the donor's Server (internal/api/server.go) with the order
// book replaced by the game manager and one Hub per live game instead of
// one Hub for the whole market.
type Server struct {
	games *game.Manager
	store *store.Store

	sessions    *SessionStore
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	corsOrigins []string

	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewServer(gm *game.Manager, st *store.Store) *Server {
	s := &Server{
		games:       gm,
		store:       st,
		sessions:    NewSessionStore(st),
		rateLimiter: NewRateLimiter(100, time.Minute),
		hubs:        make(map[string]*Hub),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	gm.OnGameEnd(func(session *game.Session, returns []float64) {
		s.broadcastGame(session.ID, session)
		s.dropHub(session.ID)
	})
	return s
}

// SetCORSOrigins restricts accepted origins; an empty slice allows all
// (development mode).
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.With(s.rateLimiter.Middleware).Post("/games", s.handleCreateGame)
		r.Get("/games/{id}", s.handleGetGame)
		r.With(s.rateLimiter.Middleware).Post("/games/{id}/actions", s.handleSubmitAction)
		r.Get("/games/{id}/legal-actions", s.handleLegalActions)
	})

	r.Get("/ws", s.handleWebSocket)
	return r
}

type createGameRequest struct {
	Config action.Config `json:"config"`
	// TakeSeat requests the caller occupy this seat as a human; -1 (also
	// the value when the field is omitted) leaves every seat bot-held,
	// useful for spectating a scripted match.
	TakeSeat int `json:"take_seat"`
}

type createGameResponse struct {
	GameID   string        `json:"game_id"`
	YourSeat int           `json:"your_seat"`
	Config   action.Config `json:"config"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	req.TakeSeat = -1
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := req.Config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	humanSeats := map[int]string{}
	yourSeat := -1
	if req.TakeSeat >= 0 {
		session := s.getSession(r)
		if session == nil {
			http.Error(w, "authentication required to take a seat", http.StatusUnauthorized)
			return
		}
		humanSeats[req.TakeSeat] = session.UserID
		yourSeat = req.TakeSeat
	}

	gameSession, err := s.games.CreateGame(req.Config, humanSeats)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(createGameResponse{
		GameID:   gameSession.ID,
		YourSeat: yourSeat,
		Config:   req.Config,
	})
}

func (s *Server) callerSeat(r *http.Request, gameSession *game.Session) (int, bool) {
	session := s.getSession(r)
	if session == nil {
		return -1, false
	}
	return gameSession.SeatOf(session.UserID)
}

type gameViewResponse struct {
	GameID        string `json:"game_id"`
	YourSeat      int    `json:"your_seat"`
	CurrentPlayer int    `json:"current_player"`
	IsTerminal    bool   `json:"is_terminal"`
	InfoState     string `json:"info_state"`
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gameSession, err := s.games.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	seat, ok := s.callerSeat(r, gameSession)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	st := gameSession.State()
	infoStr, err := st.InformationStateString(seat)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(gameViewResponse{
		GameID:        id,
		YourSeat:      seat,
		CurrentPlayer: st.CurrentPlayer(),
		IsTerminal:    st.IsTerminal(),
		InfoState:     infoStr,
	})
}

type submitActionRequest struct {
	Action int64 `json:"action"`
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.games.Submit(id, session.UserID, action.Action(req.Action)); err != nil {
		switch {
		case errors.Is(err, game.ErrGameNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, game.ErrSeatNotYours), errors.Is(err, game.ErrNotYourTurn):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	if gameSession, err := s.games.Get(id); err == nil {
		s.broadcastGame(id, gameSession)
	}
	w.WriteHeader(http.StatusOK)
}

type legalActionsResponse struct {
	CurrentPlayer int     `json:"current_player"`
	LegalActions  []int64 `json:"legal_actions"`
}

func (s *Server) handleLegalActions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gameSession, err := s.games.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	st := gameSession.State()
	legal, err := st.LegalActions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ids := make([]int64, len(legal))
	for i, a := range legal {
		ids[i] = int64(a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(legalActionsResponse{
		CurrentPlayer: st.CurrentPlayer(),
		LegalActions:  ids,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]store.UserStats{})
		return
	}
	entries, err := s.store.GetLeaderboard(10)
	if err != nil {
		http.Error(w, "failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		http.Error(w, "game query parameter required", http.StatusBadRequest)
		return
	}
	gameSession, err := s.games.Get(gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{hub: s.getOrCreateHub(gameID), conn: conn, send: make(chan []byte, 64)}
	client.hub.Register(client)

	data, _ := json.Marshal(gameUpdateMessage(gameID, gameSession))
	client.send <- data

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) getOrCreateHub(gameID string) *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[gameID]
	if !ok {
		h = NewHub()
		s.hubs[gameID] = h
	}
	return h
}

func (s *Server) dropHub(gameID string) {
	s.mu.Lock()
	delete(s.hubs, gameID)
	s.mu.Unlock()
}

func gameUpdateMessage(gameID string, gameSession *game.Session) map[string]interface{} {
	st := gameSession.State()
	return map[string]interface{}{
		"type":           "game_update",
		"game_id":        gameID,
		"current_player": st.CurrentPlayer(),
		"is_terminal":    st.IsTerminal(),
		"public":         st.String(),
	}
}

// broadcastGame pushes the public view of a game to every connected
// watcher; called after every action submission and at game end.
func (s *Server) broadcastGame(gameID string, gameSession *game.Session) {
	s.mu.Lock()
	h, ok := s.hubs[gameID]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.Broadcast(gameUpdateMessage(gameID, gameSession))
}

// Shutdown halts background goroutines (session cleanup, rate limiter).
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
}
