package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/tiller/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Statements and holdings
	mux.HandleFunc("/api/statements", s.handleStatementUpload)
	mux.HandleFunc("/api/accounts", s.handleAccountList)
	mux.HandleFunc("/api/holdings/dates", s.handleHoldingDates)
	mux.HandleFunc("/api/holdings", s.handleHoldings)

	// Targets
	mux.HandleFunc("/api/targets/import", s.handleTargetImport)
	mux.HandleFunc("/api/targets/history", s.handleTargetHistory)
	mux.HandleFunc("/api/targets/", s.handleTargetByID)
	mux.HandleFunc("/api/targets", s.handleTargets)

	// Symbol mappings
	mux.HandleFunc("/api/mappings/", s.handleMappingByID)
	mux.HandleFunc("/api/mappings", s.handleMappings)

	// Rebalancing
	mux.HandleFunc("/api/rebalance/chart", s.handleRebalanceChart)
	mux.HandleFunc("/api/rebalance", s.handleRebalance)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":       s.app.Config.Environment,
		"storage_address":   s.app.Config.Storage.Address,
		"storage_namespace": s.app.Config.Storage.Namespace,
		"storage_database":  s.app.Config.Storage.Database,
		"logging_level":     s.app.Config.Logging.Level,
		"tolerance_pct":     s.app.Config.Rebalance.TolerancePct,
		"eodhd_configured":  s.app.RateClient != nil,
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
