package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/config"
	"github.com/visualgpt/visualgpt/compositor/internal/db"
	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/export"
	mw "github.com/visualgpt/visualgpt/compositor/internal/middleware"
	"github.com/visualgpt/visualgpt/compositor/internal/session"
	"github.com/visualgpt/visualgpt/compositor/internal/visual"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres when configured, otherwise an in-memory store for local use
	var store visual.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = visual.NewPGStore(pool)
	} else {
		slog.Warn("DATABASE_URL not set, visuals are kept in memory")
		store = visual.NewMemStore()
	}

	blobs := asset.NewDiskStore(cfg.AssetDir, cfg.PublicBaseURL)
	fetcher := asset.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxAssetBytes, blobs, cfg.PublicBaseURL)
	fetcher.AllowFiles = cfg.AllowFiles
	loader := asset.NewLoader(fetcher, cfg.AssetCacheSize, asset.WithFetchTimeout(cfg.FetchTimeout))
	renderer := engine.NewRenderer(engine.NewFonts())

	exportService := export.NewService(loader, blobs, renderer, cfg.ExportScale)
	exportHandler := export.NewHandler(exportService)

	visualService := visual.NewService(store, exportService)
	visualHandler := visual.NewHandler(visualService)

	assetHandler := asset.NewHandler(blobs, cfg.MaxAssetBytes)

	hub := session.NewHub(visualService, loader,
		engine.WithRenderer(renderer),
		engine.WithExportScale(cfg.ExportScale),
	)
	go hub.Run(ctx)
	sessionHandler := session.NewHandler(hub, cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Stored images
	r.HandleFunc("/assets/{id}", assetHandler.Serve).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/assets", assetHandler.Upload).Methods("POST", "OPTIONS")
	api.HandleFunc("/assets/{id}", assetHandler.Delete).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/visuals", visualHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/visuals/{visualId}", visualHandler.Get).Methods("GET")
	api.HandleFunc("/visuals/{visualId}", visualHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/visuals/{visualId}/layers", visualHandler.UpdateLayers).Methods("PUT", "OPTIONS")
	api.HandleFunc("/visuals/{visualId}/save", visualHandler.Save).Methods("POST", "OPTIONS")
	api.HandleFunc("/visuals/{visualId}/start-over", visualHandler.StartOver).Methods("POST", "OPTIONS")

	// Stateless rendering
	api.HandleFunc("/export/render", exportHandler.Render).Methods("POST", "OPTIONS")
	api.HandleFunc("/export/render.png", exportHandler.RenderPNG).Methods("POST", "OPTIONS")
	api.HandleFunc("/export/crop", exportHandler.Crop).Methods("POST", "OPTIONS")
	api.HandleFunc("/export/crop/preview", exportHandler.CropPreview).Methods("POST", "OPTIONS")

	// Live editing sessions
	r.HandleFunc("/ws/visual/{visualId}", sessionHandler.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Persist open sessions before the store goes away
		hub.Stop(shutdownCtx)
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
