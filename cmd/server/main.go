package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	duochatui "github.com/MegaGrindStone/duo-chat-ui"
	"github.com/MegaGrindStone/duo-chat-ui/internal/api"
	"github.com/MegaGrindStone/duo-chat-ui/internal/client"
	"github.com/MegaGrindStone/duo-chat-ui/internal/handlers"
	"github.com/MegaGrindStone/duo-chat-ui/internal/services"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func main() {
	// Missing .env is fine; the config file and environment carry the same settings.
	_ = godotenv.Load()

	cfgPath := os.Getenv("DUO_CHAT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}
	cfg.applyDefaults()

	logger := cfg.logger()

	llm, err := cfg.Provider.llm(logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating llm provider: %w", err))
	}

	boltDB, err := services.NewBoltDB(cfg.DBPath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening database: %w", err))
	}
	defer boltDB.Close()

	apiHandler := api.New(llm, boltDB, api.RateLimit{
		PerSecond: cfg.RateLimit.PerSecond,
		Burst:     cfg.RateLimit.Burst,
	}, logger)

	// The page talks to the backend over real HTTP even though both live in this binary, so the
	// transport exercises the same wire protocol a split deployment would.
	apiClient := client.New("http://127.0.0.1:"+cfg.Port, cfg.apiTimeout(), logger)

	m, err := handlers.NewMain(apiClient, apiClient, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating web handlers: %w", err))
	}

	// Serve static files
	staticFS, err := fs.Sub(duochatui.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	apiHandler.Register(mux)

	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("GET /{$}", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/method", m.HandleMethod)
	mux.HandleFunc("/clear", m.HandleClear)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/sessions/save", m.HandleSaveSession)
	mux.HandleFunc("GET /sessions/{id}", m.HandleLoadSession)
	mux.HandleFunc("/export", m.HandleExport)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
