package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/places-cli/internal/claims"
	"github.com/sells-group/places-cli/internal/importer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for claims and import jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(claims.NewManager(st), orch, cfg.Server.RPS),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// claimSubmission is the wire form of a claim request.
type claimSubmission struct {
	PlaceID       string `json:"placeId"`
	ContactEmail  string `json:"contactEmail"`
	ContactPhone  string `json:"contactPhone"`
	Justification string `json:"justification"`
	OwnerRef      string `json:"ownerRef,omitempty"`
}

type claimAck struct {
	Accepted             bool   `json:"accepted"`
	ClaimID              string `json:"claimId"`
	RequiresVerification bool   `json:"requiresVerification"`
}

type importRequest struct {
	City       string  `json:"city"`
	Category   string  `json:"category"`
	Keyword    string  `json:"keyword"`
	Radius     float64 `json:"radiusMeters"`
	MaxResults int     `json:"maxResults"`
	Update     bool    `json:"update"`
}

func newRouter(mgr *claims.Manager, orch *importer.Orchestrator, rps float64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if rps > 0 {
		r.Use(throttle(rate.NewLimiter(rate.Limit(rps), int(rps))))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/claims", func(w http.ResponseWriter, req *http.Request) {
		var sub claimSubmission
		if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if sub.PlaceID == "" || sub.ContactEmail == "" {
			writeError(w, http.StatusBadRequest, "placeId and contactEmail are required")
			return
		}

		receipt, err := mgr.Claim(req.Context(), claims.ClaimRequest{
			PlaceID:       sub.PlaceID,
			ContactEmail:  sub.ContactEmail,
			ContactPhone:  sub.ContactPhone,
			Justification: sub.Justification,
			OwnerRef:      sub.OwnerRef,
		})
		if err != nil {
			writeClaimError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, claimAck{
			Accepted:             receipt.Accepted,
			ClaimID:              receipt.ClaimID,
			RequiresVerification: receipt.RequiresVerification,
		})
	})

	r.Get("/api/places/{placeID}/history", func(w http.ResponseWriter, req *http.Request) {
		events, err := mgr.History(req.Context(), chi.URLParam(req, "placeID"))
		if err != nil {
			writeClaimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := mgr.CollectStats(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Post("/api/import", func(w http.ResponseWriter, req *http.Request) {
		var ir importRequest
		if err := json.NewDecoder(req.Body).Decode(&ir); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if ir.City == "" && ir.Keyword == "" {
			writeError(w, http.StatusBadRequest, "city or keyword is required")
			return
		}

		var (
			report *importer.Report
			err    error
		)
		if ir.City != "" && ir.Radius == 0 && ir.MaxResults == 0 {
			report, err = orch.ImportByCity(req.Context(), ir.City, ir.Category, ir.Update)
		} else {
			report, err = orch.Run(req.Context(), importer.JobSpec{
				Location:       ir.City,
				RadiusMeters:   ir.Radius,
				Category:       ir.Category,
				Keyword:        ir.Keyword,
				MaxResults:     ir.MaxResults,
				UpdateExisting: ir.Update,
			})
		}
		if err != nil {
			zap.L().Error("import request failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "import failed")
			return
		}

		writeJSON(w, http.StatusOK, report)
	})

	return r
}

func throttle(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, claims.ErrNotFound):
		writeError(w, http.StatusNotFound, "place not found")
	case errors.Is(err, claims.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "place already claimed")
	case errors.Is(err, claims.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, "invalid claim state")
	default:
		zap.L().Error("claim operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
