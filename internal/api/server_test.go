package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"highlowtrading/internal/action"
	"highlowtrading/internal/api"
	"highlowtrading/internal/game"
	"highlowtrading/internal/store"
)

type testEnv struct {
	server *httptest.Server
	store  *store.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	manager := game.NewManager(st)
	srv := api.NewServer(manager, st)
	ts := httptest.NewServer(srv.Router())
	return &testEnv{server: ts, store: st}
}

func (e *testEnv) cleanup() {
	e.server.Close()
	e.store.Close()
}

func (e *testEnv) post(path string, body interface{}, token string) (*http.Response, error) {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func (e *testEnv) get(path string, token string) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func testConfig() action.Config {
	return action.Config{
		NumPlayers:           4,
		StepsPerPlayer:       2,
		MaxContractsPerTrade: 2,
		CustomerMaxSize:      3,
		MaxContractValue:     30,
	}
}

func registerAndLogin(t *testing.T, e *testEnv, username string) string {
	t.Helper()
	resp, err := e.post("/api/auth/register", map[string]string{
		"username": username,
		"password": "correcthorsebattery",
	}, "")
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", resp.StatusCode)
	}
	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return auth.Token
}

func TestRegisterAndLogin(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	token := registerAndLogin(t, e, "alice")
	if token == "" {
		t.Fatalf("expected a non-empty session token")
	}

	resp, err := e.post("/api/auth/login", map[string]string{
		"username": "alice",
		"password": "correcthorsebattery",
	}, "")
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateGameAllBotsFinishesImmediately(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	resp, err := e.post("/api/games", map[string]interface{}{
		"config":    testConfig(),
		"take_seat": -1,
	}, "")
	if err != nil {
		t.Fatalf("create game request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create game: expected 200, got %d", resp.StatusCode)
	}
	var created struct {
		GameID   string `json:"game_id"`
		YourSeat int    `json:"your_seat"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.YourSeat != -1 {
		t.Errorf("expected no seat taken, got %d", created.YourSeat)
	}

	// The all-bot game plays to completion inside CreateGame, so it is no
	// longer live by the time this request lands.
	viewResp, err := e.get("/api/games/"+created.GameID, "")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer viewResp.Body.Close()
	if viewResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a finished, removed game, got %d", viewResp.StatusCode)
	}
}

func TestCreateGameWithHumanSeatRequiresAuth(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	resp, err := e.post("/api/games", map[string]interface{}{
		"config":    testConfig(),
		"take_seat": 0,
	}, "")
	if err != nil {
		t.Fatalf("create game request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", resp.StatusCode)
	}
}

func TestHumanSeatGameFlowAndLegalActions(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	token := registerAndLogin(t, e, "bob")

	resp, err := e.post("/api/games", map[string]interface{}{
		"config":    testConfig(),
		"take_seat": 0,
	}, token)
	if err != nil {
		t.Fatalf("create game request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create game: expected 200, got %d", resp.StatusCode)
	}
	var created struct {
		GameID   string `json:"game_id"`
		YourSeat int    `json:"your_seat"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.YourSeat != 0 {
		t.Fatalf("expected seat 0, got %d", created.YourSeat)
	}

	viewResp, err := e.get("/api/games/"+created.GameID, token)
	if err != nil {
		t.Fatalf("get game failed: %v", err)
	}
	defer viewResp.Body.Close()
	if viewResp.StatusCode != http.StatusOK {
		t.Fatalf("get game: expected 200, got %d", viewResp.StatusCode)
	}
	var view struct {
		CurrentPlayer int  `json:"current_player"`
		IsTerminal    bool `json:"is_terminal"`
	}
	if err := json.NewDecoder(viewResp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.IsTerminal {
		t.Fatalf("did not expect a single human-seat game to finish immediately")
	}
	if view.CurrentPlayer != 0 {
		t.Fatalf("expected play to stop at the human seat 0, got player %d", view.CurrentPlayer)
	}

	legalResp, err := e.get("/api/games/"+created.GameID+"/legal-actions", token)
	if err != nil {
		t.Fatalf("legal-actions request failed: %v", err)
	}
	defer legalResp.Body.Close()
	var legal struct {
		LegalActions []int64 `json:"legal_actions"`
	}
	if err := json.NewDecoder(legalResp.Body).Decode(&legal); err != nil {
		t.Fatalf("decode legal-actions: %v", err)
	}
	if len(legal.LegalActions) == 0 {
		t.Fatalf("expected a non-empty legal action list")
	}

	submitResp, err := e.post("/api/games/"+created.GameID+"/actions", map[string]int64{
		"action": legal.LegalActions[0],
	}, token)
	if err != nil {
		t.Fatalf("submit action request failed: %v", err)
	}
	defer submitResp.Body.Close()
	if submitResp.StatusCode != http.StatusOK {
		t.Fatalf("submit action: expected 200, got %d", submitResp.StatusCode)
	}
}

func TestSubmitActionWrongSeatForbidden(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	token := registerAndLogin(t, e, "carol")
	otherToken := registerAndLogin(t, e, "dave")

	resp, err := e.post("/api/games", map[string]interface{}{
		"config":    testConfig(),
		"take_seat": 0,
	}, token)
	if err != nil {
		t.Fatalf("create game request failed: %v", err)
	}
	defer resp.Body.Close()
	var created struct {
		GameID string `json:"game_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	submitResp, err := e.post("/api/games/"+created.GameID+"/actions", map[string]int64{"action": 0}, otherToken)
	if err != nil {
		t.Fatalf("submit action request failed: %v", err)
	}
	defer submitResp.Body.Close()
	if submitResp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong-seat submission, got %d", submitResp.StatusCode)
	}
}

func TestLeaderboardEmptyByDefault(t *testing.T) {
	e := setupTestEnv(t)
	defer e.cleanup()

	resp, err := e.get("/api/leaderboard", "")
	if err != nil {
		t.Fatalf("leaderboard request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", resp.StatusCode)
	}
	var entries []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty leaderboard before any game completes, got %d entries", len(entries))
	}
}
