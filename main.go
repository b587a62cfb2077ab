package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	Config "campusnet/Config"
	Event "campusnet/Events"
	AuthEvent "campusnet/Events/Auth"
	Messages "campusnet/Events/Messages"
	Posts "campusnet/Events/Posts"
	Stories "campusnet/Events/Stories"
	Users "campusnet/Events/Users"
	Auth "campusnet/Services/Auth"
	Mdb "campusnet/Services/Mdb"
	Storage "campusnet/Services/Storage"
	Utils "campusnet/Utils"
)

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin and non-browser clients carry no Origin.
				next.ServeHTTP(w, r)
				return
			}

			if !allowed[origin] {
				Utils.SendError(w, http.StatusForbidden, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamp := time.Now().Format("2006-01-02 15:04:05")

		log.Printf("[%s] %s %s\n", timestamp, r.Method, r.URL.Path)

		next.ServeHTTP(w, r)
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	cfg, err := Config.Load()
	if err != nil {
		log.Fatal("Config error: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Mdb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal("Database error: ", err)
	}
	defer db.Close(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal("Index error: ", err)
	}

	uploads, err := Storage.New(cfg.UploadsDir)
	if err != nil {
		log.Fatal("Storage error: ", err)
	}

	authService := Auth.New(cfg.JWTSecret, cfg.TokenValidity)

	userStore := Users.NewMongoStore(db)
	postStore := Posts.NewMongoStore(db)
	storyStore := Stories.NewMongoStore(db)
	messageStore := Messages.NewMongoStore(db)

	registry := &Event.Registry{
		Auth:     AuthEvent.NewController(userStore, authService),
		Users:    Users.NewController(userStore, uploads, authService),
		Posts:    Posts.NewController(postStore, userStore, authService),
		Stories:  Stories.NewController(storyStore, userStore, authService),
		Messages: Messages.NewController(messageStore, userStore, authService),
	}

	mux := chi.NewRouter()
	mux.Use(corsMiddleware(cfg.CORSOrigins), loggingMiddleware)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
				"message":   "Server is running",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})
		registry.Handler(r)
	})

	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Utils.SendError(w, http.StatusNotFound, "Route not found")
	})

	addr := ":" + cfg.Port
	fmt.Println("Server started at " + addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Println("Server error:", err)
	}
}
