package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"highlowtrading/internal/action"
	"highlowtrading/internal/api"
	"highlowtrading/internal/game"
	"highlowtrading/internal/store"
)

func main() {
	port := flag.String("port", "8088", "server port")
	dbPath := flag.String("db", "highlowtrading.db", "SQLite database path")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	numPlayers := flag.Int("players", 5, "num_players of the default config, validated and logged at startup (POST /api/games takes its config from the request)")
	stepsPerPlayer := flag.Int("steps", 3, "default steps_per_player")
	maxContractsPerTrade := flag.Int("max-contracts", 5, "default max_contracts_per_trade")
	customerMaxSize := flag.Int("customer-max-size", 5, "default customer_max_size")
	maxContractValue := flag.Int("max-contract-value", 200, "default max_contract_value")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	defaultConfig := action.Config{
		NumPlayers:           *numPlayers,
		StepsPerPlayer:       *stepsPerPlayer,
		MaxContractsPerTrade: *maxContractsPerTrade,
		CustomerMaxSize:      *customerMaxSize,
		MaxContractValue:     *maxContractValue,
	}
	if err := defaultConfig.Validate(); err != nil {
		log.Fatalf("Invalid default game configuration: %v", err)
	}

	manager := game.NewManager(st)
	manager.OnGameEnd(func(session *game.Session, returns []float64) {
		log.Printf("[Game %s] finished, returns=%v", session.ID, returns)
	})

	server := api.NewServer(manager, st)

	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	addr := ":" + *port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Starting High-Low Trading server on http://localhost%s", addr)
		log.Printf("Default game config: %+v", defaultConfig)
		log.Printf("Database: %s", *dbPath)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	server.Shutdown()
	log.Println("Server internal goroutines stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Database closed")

	log.Println("Server shutdown complete")
}
