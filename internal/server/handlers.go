package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tiller/internal/models"
)

const dateParamLayout = "2006-01-02"

// --- Statements and holdings ---

// handleStatementUpload handles POST /api/statements. The statement file
// arrives as a multipart "file" field or the raw body; format is taken
// from the ?format query (csv or pdf) and sniffed when absent.
func (s *Server) handleStatementUpload(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	data, ok := ReadUpload(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	statement, match, err := s.app.StatementService.Ingest(r.Context(), data, format)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Statement ingestion failed: "+err.Error())
		return
	}

	status := http.StatusOK
	if statement.HoldingCount() == 0 {
		// Zero holdings means the file had no recognizable positions
		// section. Nothing was stored.
		status = http.StatusUnprocessableEntity
	}

	WriteJSON(w, status, map[string]interface{}{
		"statement": statement,
		"match":     match,
	})
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	accounts, err := s.app.Storage.HoldingStore().ListAccounts(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list accounts: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

func (s *Server) handleHoldingDates(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account query parameter is required")
		return
	}

	dates, err := s.app.Storage.HoldingStore().ListDates(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list statement dates: "+err.Error())
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(dateParamLayout))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"dates": formatted})
}

// handleHoldings handles GET /api/holdings?account=...&date=YYYY-MM-DD.
// Without a date it returns the latest snapshot.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account query parameter is required")
		return
	}

	var holdings []*models.Holding
	var err error
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		date, perr := time.Parse(dateParamLayout, dateParam)
		if perr != nil {
			WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		holdings, err = s.app.Storage.HoldingStore().GetForDate(r.Context(), accountID, date)
	} else {
		holdings, err = s.app.Storage.HoldingStore().GetLatest(r.Context(), accountID)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load holdings: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"holdings": holdings})
}

// --- Targets ---

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		targets, err := s.app.Storage.TargetStore().List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to list targets: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"targets": targets})

	case http.MethodPost:
		var target models.TargetAllocation
		if !DecodeJSON(w, r, &target) {
			return
		}
		if target.TargetPct < 0 || target.TargetPct > 100 {
			WriteError(w, http.StatusBadRequest, "target_pct must be within [0,100]")
			return
		}
		if err := s.app.Storage.TargetStore().Save(r.Context(), &target); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to save target: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, target)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTargetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "target id is required in path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		target, err := s.app.Storage.TargetStore().Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to get target: "+err.Error())
			return
		}
		if target == nil {
			WriteError(w, http.StatusNotFound, "Target not found")
			return
		}
		WriteJSON(w, http.StatusOK, target)

	case http.MethodDelete:
		if err := s.app.Storage.TargetStore().Delete(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to delete target: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleTargetImport handles POST /api/targets/import. The file format
// comes from ?format (csv or xlsx) and is sniffed when absent. With
// ?commit=true the parsed set replaces the stored targets — but only when
// every row validated; imports with errors are never committed.
func (s *Server) handleTargetImport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	data, ok := ReadUpload(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		// xlsx files are zip archives.
		if bytes.HasPrefix(data, []byte("PK")) {
			format = "xlsx"
		} else {
			format = "csv"
		}
	}

	var result *models.TargetImport
	switch format {
	case "csv":
		result = s.app.TargetService.ParseCSV(string(data))
	case "xlsx", "excel":
		var err error
		result, err = s.app.TargetService.ParseExcel(data, r.URL.Query().Get("sheet"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Failed to parse workbook: "+err.Error())
			return
		}
	default:
		WriteError(w, http.StatusBadRequest, "Unsupported format: "+format)
		return
	}

	if r.URL.Query().Get("enrich") == "true" {
		s.app.TargetService.EnrichNames(r.Context(), result.Targets)
	}

	resp := map[string]interface{}{
		"targets":  result.Targets,
		"warnings": result.Warnings,
		"errors":   result.Errors,
	}

	if r.URL.Query().Get("commit") == "true" {
		if len(result.Errors) > 0 {
			resp["committed"] = false
			WriteJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		batchID, err := s.app.TargetService.Commit(r.Context(), result.Targets)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to commit target set: "+err.Error())
			return
		}
		resp["committed"] = true
		resp["batch_id"] = batchID
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTargetHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	history, err := s.app.Storage.TargetStore().History(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load target history: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// --- Symbol mappings ---

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accountID := r.URL.Query().Get("account")
		if accountID == "" {
			WriteError(w, http.StatusBadRequest, "account query parameter is required")
			return
		}
		mappings, err := s.app.Storage.MappingStore().ListForAccount(r.Context(), accountID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to list mappings: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"mappings": mappings})

	case http.MethodPost:
		var mapping models.SymbolMapping
		if !DecodeJSON(w, r, &mapping) {
			return
		}
		if mapping.AccountID == "" || mapping.HoldingSymbol == "" || mapping.TargetSymbol == "" {
			WriteError(w, http.StatusBadRequest, "account_id, holding_symbol, and target_symbol are required")
			return
		}
		if err := s.app.Storage.MappingStore().Save(r.Context(), &mapping); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to save mapping: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, mapping)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleMappingByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/mappings/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "mapping id is required in path")
		return
	}

	if err := s.app.Storage.MappingStore().Delete(r.Context(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to delete mapping: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Rebalancing ---

// planFromQuery computes the rebalancing plan for the request's account,
// date, and tolerance query parameters.
func (s *Server) planFromQuery(w http.ResponseWriter, r *http.Request) (*models.RebalancingPlan, bool) {
	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account query parameter is required")
		return nil, false
	}

	var asOf time.Time
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		parsed, err := time.Parse(dateParamLayout, dateParam)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return nil, false
		}
		asOf = parsed
	}

	tolerance := s.app.Config.Rebalance.TolerancePct
	if tolParam := r.URL.Query().Get("tolerance"); tolParam != "" {
		parsed, err := strconv.ParseFloat(tolParam, 64)
		if err != nil || parsed < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid tolerance, expected a non-negative number")
			return nil, false
		}
		tolerance = parsed
	}

	plan, err := s.app.RebalanceService.PlanForAccount(r.Context(), accountID, asOf, tolerance)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to compute rebalancing plan: "+err.Error())
		return nil, false
	}
	return plan, true
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	plan, ok := s.planFromQuery(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRebalanceChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	plan, ok := s.planFromQuery(w, r)
	if !ok {
		return
	}

	png, err := s.app.RebalanceService.RenderDeviationChart(plan)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "Failed to render chart: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
