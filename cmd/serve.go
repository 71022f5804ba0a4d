package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
	"github.com/carteakey/aidar/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only stats API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		snapshot, err := pattern.Load(cfg.Patterns.Dir)
		if err != nil {
			return eris.Wrap(err, "load patterns")
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, snapshot),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store, snapshot *pattern.Snapshot) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/scans", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.ScanFilter{
			Domain: q.Get("domain"),
			Label:  model.Label(q.Get("label")),
			Order:  q.Get("order"),
			Limit:  intParam(q.Get("limit"), 100),
			Offset: intParam(q.Get("offset"), 0),
		}
		rows, err := st.ListScans(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/api/domains/{domain}", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.DomainStats(r.Context(), chi.URLParam(r, "domain"))
		if err != nil {
			writeError(w, err)
			return
		}
		if stats == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "domain has no scans"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		entries, err := st.DomainLeaderboard(r.Context(), intParam(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/stats/global", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.GlobalStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/api/stats/patterns", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.PatternStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/api/patterns", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, snapshot.All())
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("api request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
