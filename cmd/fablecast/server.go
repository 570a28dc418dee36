package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/health"
	"github.com/fablecast/fablecast/internal/observe"
	"github.com/fablecast/fablecast/internal/outcomestore"
	"github.com/fablecast/fablecast/internal/registry"
	"github.com/fablecast/fablecast/internal/story"
)

const defaultListenAddr = ":8080"

// outcomeSink persists generated outcomes: audio bytes go to the object
// store (when one is configured), the provenance record to the outcome store.
type outcomeSink struct {
	store   outcomestore.Store
	objects outcomestore.ObjectStore
}

// persist writes out to the configured stores. Persistence failures never
// fail the generation itself; callers log and move on.
func (s *outcomeSink) persist(ctx context.Context, out *story.Outcome) error {
	rec := &outcomestore.Record{Outcome: *out}
	if out.AudioPresent() && s.objects != nil {
		key := out.RequestID + audioExt(out.AudioMetadata)
		url, err := s.objects.Put(ctx, key, out.AudioBytes)
		if err != nil {
			return fmt.Errorf("store audio: %w", err)
		}
		rec.AudioURL = url
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	return nil
}

// ── HTTP API ──────────────────────────────────────────────────────────────────

// generateRequest is the POST /v1/stories body.
type generateRequest struct {
	Profile struct {
		Name      string   `json:"name"`
		Age       int      `json:"age"`
		Interests []string `json:"interests"`
	} `json:"profile"`
	Theme         string  `json:"theme"`
	LengthMinutes int     `json:"length_minutes"`
	Language      string  `json:"language"`
	VoiceProvider string  `json:"voice_provider"`
	VoiceID       string  `json:"voice_id"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
}

// storedOutcome is the API shape of a persisted outcome: the outcome's own
// JSON fields plus storage metadata. Audio bytes are never inlined; clients
// fetch them via AudioURL.
type storedOutcome struct {
	story.Outcome
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type apiError struct {
	Error string `json:"error"`
}

type server struct {
	cfg  *config.Config
	orch *story.Orchestrator
	sink *outcomeSink
}

func serveHTTP(ctx context.Context, cfg *config.Config, orch *story.Orchestrator, sink *outcomeSink, reg *registry.Registry, pool *pgxpool.Pool, metrics *observe.Metrics) int {
	s := &server{cfg: cfg, orch: orch, sink: sink}

	checkers := []health.Checker{health.VoiceRegistryChecker(reg)}
	if pool != nil {
		checkers = append(checkers, health.DatabaseChecker(pool))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/stories", s.handleGenerate)
	mux.HandleFunc("GET /v1/stories", s.handleList)
	mux.HandleFunc("GET /v1/stories/{id}", s.handleGet)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutdown signal received, stopping…")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
	}()

	slog.Info("server ready", "addr", addr, "tls", cfg.Server.TLS != nil)

	var err error
	if tls := cfg.Server.TLS; tls != nil {
		err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body: " + err.Error()})
		return
	}

	req := story.Request{
		Profile: story.Profile{
			Name:      body.Profile.Name,
			Age:       body.Profile.Age,
			Interests: body.Profile.Interests,
		},
		Theme:         body.Theme,
		LengthMinutes: body.LengthMinutes,
		Language:      body.Language,
		VoiceProvider: body.VoiceProvider,
		VoiceID:       body.VoiceID,
		TextModel:     body.Model,
		MaxTokens:     body.MaxTokens,
		Temperature:   body.Temperature,
	}
	if req.TextModel == "" {
		req.TextModel = s.cfg.TextGen.Provider.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.cfg.TextGen.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = s.cfg.TextGen.Temperature
	}

	out := s.orch.Generate(r.Context(), req)

	resp := storedOutcome{Outcome: *out}
	if err := s.sink.persist(r.Context(), out); err != nil {
		slog.Warn("failed to persist outcome", "request_id", out.RequestID, "err", err)
	} else if rec, err := s.sink.store.Get(r.Context(), out.RequestID); err == nil {
		resp.AudioURL = rec.AudioURL
		resp.CreatedAt = rec.CreatedAt
	}

	status := http.StatusOK
	if !out.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.sink.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, outcomestore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, storedOutcome{
		Outcome:   rec.Outcome,
		AudioURL:  rec.AudioURL,
		CreatedAt: rec.CreatedAt,
	})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.sink.store.List(r.Context(), 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	out := make([]storedOutcome, 0, len(recs))
	for _, rec := range recs {
		out = append(out, storedOutcome{
			Outcome:   rec.Outcome,
			AudioURL:  rec.AudioURL,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}
