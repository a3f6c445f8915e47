package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gemmad/internal/engine"
	"gemmad/internal/session"
	"gemmad/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Messages() []types.Message
	Chat(ctx context.Context, req types.ChatRequest) (types.Message, error)
	Retry(ctx context.Context) (string, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.MessagesResponse{Messages: svc.Messages()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			logChatStart(r)
		}
		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		msg, err := svc.Chat(joinedCtx, req)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := chatErrorStatus(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("generation_in_flight")
			}
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo {
				logChatEnd(r, status, time.Since(start), err)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ChatResponse{Message: msg}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		if lvl >= LevelInfo {
			logChatEnd(r, http.StatusOK, time.Since(start), nil)
		}
	})

	r.Post("/retry", func(w http.ResponseWriter, r *http.Request) {
		opID, err := svc.Retry(serverBaseCtx)
		if err != nil {
			switch {
			case session.IsNotRetryable(err):
				writeJSONError(w, http.StatusConflict, err.Error())
			case session.IsRunInFlight(err):
				writeJSONError(w, http.StatusConflict, err.Error())
			default:
				writeJSONError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.RetryResponse{OpID: opID})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// chatErrorStatus maps well-known session/engine errors to HTTP status codes.
func chatErrorStatus(err error) int {
	switch {
	case engine.IsEmptyPrompt(err):
		return http.StatusBadRequest
	case engine.IsInvalidImage(err):
		return http.StatusBadRequest
	case engine.IsImageNotFound(err):
		return http.StatusNotFound
	case engine.IsBusy(err):
		return http.StatusTooManyRequests
	case session.IsNotReady(err), engine.IsNotActivated(err), engine.IsRuntimeUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

func logChatStart(r *http.Request) {
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("chat start")
		return
	}
	log.Printf("chat start path=%s", r.URL.Path)
}

func logChatEnd(r *http.Request, status int, dur time.Duration, err error) {
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", dur)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("chat end")
		return
	}
	if err != nil {
		log.Printf("chat end status=%d dur=%s err=%v", status, dur, err)
		return
	}
	log.Printf("chat end status=%d dur=%s", status, dur)
}
