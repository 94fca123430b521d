package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"vidtube/auth"
	"vidtube/comments"
	"vidtube/db"
	"vidtube/history"
	"vidtube/httputil"
	"vidtube/likes"
	"vidtube/playlists"
	"vidtube/ratelimit"
	"vidtube/storage"
	"vidtube/subscriptions"
	"vidtube/suggest"
	"vidtube/videos"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Dialect       string
	DBPath        string
	DatabaseURL   string
	MinioEndpoint string
	MinioAccess   string
	MinioSecret   string
	MinioBucket   string
	MinioSSL      bool
	JWTSecret     string
	Port          string
	SuggestCache  int
}

func loadConfig() Config {
	return Config{
		Dialect:       getEnv("DIALECT", "sqlite"),
		DBPath:        getEnv("DB_PATH", "/data/vidtube.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MinioEndpoint: getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccess:   getEnv("MINIO_ACCESS_KEY", "vidtube"),
		MinioSecret:   getEnv("MINIO_SECRET_KEY", "changeme123"),
		MinioBucket:   getEnv("MINIO_BUCKET", "videos"),
		MinioSSL:      getEnv("MINIO_USE_SSL", "false") == "true",
		JWTSecret:     getEnv("JWT_SECRET", "supersecretkey"),
		Port:          getEnv("PORT", "8080"),
		SuggestCache:  getEnvInt("SUGGEST_CACHE_SIZE", 512),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func openDatabase(cfg Config) (*db.CompatDB, error) {
	if cfg.Dialect == "postgres" {
		raw, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		raw.SetMaxOpenConns(10)
		return db.NewCompatDB(raw, db.DialectPostgres), nil
	}

	raw, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Single connection: prevents concurrent write conflicts
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := raw.Exec(pragma); err != nil {
			return nil, err
		}
	}

	return db.NewCompatDB(raw, db.DialectSQLite), nil
}

func main() {
	cfg := loadConfig()

	database, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, database.Dialect); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	store, err := storage.New(cfg.MinioEndpoint, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioSSL, cfg.MinioBucket)
	if err != nil {
		log.Fatalf("failed to connect to minio: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed to ensure bucket: %v", err)
	}

	authH := &auth.Handler{DB: database, Storage: store, JWTSecret: cfg.JWTSecret}
	videosH := &videos.Handler{DB: database, Storage: store}
	commentsH := &comments.Handler{DB: database, MinioBucket: cfg.MinioBucket}
	likesH := &likes.Handler{DB: database, MinioBucket: cfg.MinioBucket}
	subsH := &subscriptions.Handler{DB: database, MinioBucket: cfg.MinioBucket}
	playlistsH := &playlists.Handler{DB: database, MinioBucket: cfg.MinioBucket}
	historyH := &history.Handler{DB: database, MinioBucket: cfg.MinioBucket}

	engine := suggest.NewEngine(&suggest.SQLStore{DB: database}, cfg.SuggestCache, time.Minute)
	suggestH := &suggest.Handler{Engine: engine, MinioBucket: cfg.MinioBucket}

	viewLimiter := ratelimit.New(10, time.Minute)
	authLimiter := ratelimit.New(20, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/auth/register", authLimiter.Middleware(authH.HandleRegister))
	r.Post("/api/auth/login", authLimiter.Middleware(authH.HandleLogin))
	r.Get("/api/videos", videosH.HandleList)
	r.Get("/api/videos/{id}", authH.OptionalAuth(videosH.HandleGet))
	r.Get("/api/videos/{id}/stream", videosH.HandleStream)
	r.Get("/api/videos/{id}/suggested", suggestH.HandleSuggested)
	r.Get("/api/videos/{id}/comments", commentsH.HandleList)
	r.Post("/api/videos/{id}/view", viewLimiter.Middleware(videosH.HandleViewIncrement))
	r.Get("/api/channels/{id}/subscribers", subsH.HandleListSubscribers)
	r.Get("/api/playlists/{id}", playlistsH.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(authH.RequireAuth)
		r.Get("/api/me", authH.HandleGetMe)
		r.Put("/api/me/avatar", authH.HandleUpdateAvatar)
		r.Get("/api/me/videos", videosH.HandleMyVideos)
		r.Get("/api/me/likes", likesH.HandleListLiked)
		r.Get("/api/me/subscriptions", subsH.HandleListSubscriptions)
		r.Get("/api/me/playlists", playlistsH.HandleListMine)
		r.Get("/api/me/history", historyH.HandleList)
		r.Delete("/api/me/history", historyH.HandleClear)
		r.Delete("/api/me/history/{videoId}", historyH.HandleRemove)

		r.Post("/api/videos", videosH.HandlePublish)
		r.Patch("/api/videos/{id}", videosH.HandleUpdateMeta)
		r.Put("/api/videos/{id}/thumbnail", videosH.HandleUpdateThumbnail)
		r.Put("/api/videos/{id}/publish", videosH.HandleTogglePublish)
		r.Delete("/api/videos/{id}", videosH.HandleDelete)

		r.Post("/api/videos/{id}/comments", commentsH.HandleCreate)
		r.Patch("/api/comments/{id}", commentsH.HandleUpdate)
		r.Delete("/api/comments/{id}", commentsH.HandleDelete)

		r.Post("/api/videos/{id}/like", likesH.HandleToggleVideo)
		r.Post("/api/comments/{id}/like", likesH.HandleToggleComment)

		r.Post("/api/channels/{id}/subscribe", subsH.HandleToggle)

		r.Post("/api/playlists", playlistsH.HandleCreate)
		r.Patch("/api/playlists/{id}", playlistsH.HandleUpdate)
		r.Delete("/api/playlists/{id}", playlistsH.HandleDelete)
		r.Post("/api/playlists/{id}/videos/{videoId}", playlistsH.HandleAddVideo)
		r.Delete("/api/playlists/{id}/videos/{videoId}", playlistsH.HandleRemoveVideo)

		r.Post("/api/history/{videoId}", historyH.HandleAdd)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Printf("VidTube API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("server shut down")
}
