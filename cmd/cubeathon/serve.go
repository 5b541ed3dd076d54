package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"github.com/NikhilRaikwar/Cubeathon/client"
	"github.com/NikhilRaikwar/Cubeathon/track"
)

// cmdServe runs a read-only HTTP query surface over the client: session
// state, leaderboard, and track layouts. Writes still go through the CLI
// commands; this is for dashboards and the UI layer.
func cmdServe(ctx context.Context, c *client.Client, log slog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", handleSession(c))
	mux.HandleFunc("/leaderboard", handleLeaderboard(c))
	mux.HandleFunc("/track", handleTrack())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("serve: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func handleSession(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
		if err != nil {
			http.Error(w, "bad session id", http.StatusBadRequest)
			return
		}
		state, session, err := c.SessionState(r.Context(), uint32(id))
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		resp := map[string]interface{}{"session_id": uint32(id), "state": state.String()}
		if session != nil {
			resp["session"] = session
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLeaderboard(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := c.GetLeaderboard(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func handleTrack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seed, err := strconv.ParseUint(r.URL.Query().Get("seed"), 10, 32)
		if err != nil {
			http.Error(w, "bad seed", http.StatusBadRequest)
			return
		}
		level, err := strconv.Atoi(r.URL.Query().Get("level"))
		if err != nil {
			http.Error(w, "bad level", http.StatusBadRequest)
			return
		}
		layout, err := track.Generate(uint32(seed), level)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, layout)
	}
}
