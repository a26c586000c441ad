// Package target imports target allocations from spreadsheet exports.
package target

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tiller/internal/models"
)

// Column roles recognized in a header row. Matching is by substring on
// the lowercased header cell, so "Target %" and "target_pct" both bind
// the percentage column.
var headerKeywords = map[string][]string{
	"symbol":   {"symbol", "ticker", "code"},
	"name":     {"name", "description", "instrument"},
	"pct":      {"target", "percent", "allocation", "weight", "pct", "%"},
	"type":     {"type", "class"},
	"category": {"category", "sector"},
	"isin":     {"isin"},
	"alt":      {"alt", "alternative", "equivalent"},
	"bucket":   {"bucket", "group"},
}

// Known category vocabulary per asset type; a category outside this list
// produces a warning, not an error.
var categoryVocabulary = map[models.AssetType][]string{
	models.AssetTypeStock:     {"us equity", "international equity", "emerging markets", "global equity", "small cap", "dividend", "growth", "value", "technology"},
	models.AssetTypeBond:      {"government bonds", "corporate bonds", "global bonds", "inflation-linked", "high yield", "short-term bonds"},
	models.AssetTypeCash:      {"cash", "money market"},
	models.AssetTypeCommodity: {"gold", "silver", "commodity", "broad commodities"},
	models.AssetTypeREIT:      {"reit", "real estate", "global real estate"},
	models.AssetTypeCrypto:    {"crypto", "bitcoin", "ethereum"},
}

type columnMap map[string]int

// ParseCSV parses a target-allocation CSV. Rows that fail validation are
// reported per-row and excluded; the remaining rows still import.
func (s *Service) ParseCSV(text string) *models.TargetImport {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return &models.TargetImport{Errors: []string{fmt.Sprintf("csv read failed: %v", err)}}
	}
	return s.importRows(rows)
}

// importRows is the shared import path for CSV and Excel input: locate
// the header row, bind columns, validate each data row, then run the
// cross-cutting consistency checks.
func (s *Service) importRows(rows [][]string) *models.TargetImport {
	result := &models.TargetImport{}

	headerIdx, cols := findHeader(rows)
	if headerIdx < 0 {
		result.Errors = append(result.Errors, "no header row found: need at least a symbol or category column and a target percentage column")
		return result
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		// Row numbers in messages are 1-based file positions.
		target, rowErr := parseRow(row, cols, i+1)
		if rowErr != "" {
			result.Errors = append(result.Errors, rowErr)
			continue
		}
		result.Targets = append(result.Targets, target)
	}

	result.Warnings = append(result.Warnings, consistencyWarnings(result.Targets)...)

	s.logger.Debug().
		Int("targets", len(result.Targets)).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("Parsed target import")

	return result
}

// findHeader scans the leading rows for one that binds a percentage
// column plus a symbol or category column.
func findHeader(rows [][]string) (int, columnMap) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		cols := bindColumns(rows[i])
		_, hasPct := cols["pct"]
		_, hasSymbol := cols["symbol"]
		_, hasCategory := cols["category"]
		if hasPct && (hasSymbol || hasCategory) {
			return i, cols
		}
	}
	return -1, nil
}

func bindColumns(row []string) columnMap {
	cols := make(columnMap)
	for idx, cell := range row {
		header := strings.ToLower(strings.TrimSpace(cell))
		if header == "" {
			continue
		}
		for role, keywords := range headerKeywords {
			if _, bound := cols[role]; bound {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(header, kw) {
					cols[role] = idx
					break
				}
			}
		}
	}
	return cols
}

func parseRow(row []string, cols columnMap, rowNum int) (*models.TargetAllocation, string) {
	symbol := strings.ToUpper(cell(row, cols, "symbol"))
	category := cell(row, cols, "category")
	if symbol == "" && category == "" {
		return nil, fmt.Sprintf("row %d: missing symbol and category", rowNum)
	}

	pctText := cell(row, cols, "pct")
	if pctText == "" {
		return nil, fmt.Sprintf("row %d: missing target percentage", rowNum)
	}
	pct, err := parsePercent(pctText)
	if err != nil {
		return nil, fmt.Sprintf("row %d: invalid percentage %q", rowNum, pctText)
	}
	if pct < 0 || pct > 100 {
		return nil, fmt.Sprintf("row %d: percentage %.2f out of range [0,100]", rowNum, pct)
	}

	now := time.Now()
	return &models.TargetAllocation{
		Symbol:        symbol,
		AltSymbols:    splitAltSymbols(cell(row, cols, "alt")),
		ISIN:          strings.ToUpper(cell(row, cols, "isin")),
		Name:          cell(row, cols, "name"),
		AssetType:     parseAssetType(cell(row, cols, "type")),
		AssetCategory: category,
		TargetPct:     pct,
		Bucket:        cell(row, cols, "bucket"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, ""
}

func cell(row []string, cols columnMap, role string) string {
	idx, ok := cols[role]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parsePercent accepts "5", "5%", "0.05" (fractional, scaled to 5.0),
// and comma decimal separators.
func parsePercent(text string) (float64, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(text), "%")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return 0, err
	}
	if v > 0 && v < 1 {
		v *= 100
	}
	return v, nil
}

func splitAltSymbols(text string) []string {
	if text == "" {
		return nil
	}
	var alts []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	}) {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			alts = append(alts, sym)
		}
	}
	return alts
}

func parseAssetType(text string) models.AssetType {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "stock", "stocks", "equity", "equities", "etf", "share", "shares":
		return models.AssetTypeStock
	case "bond", "bonds", "fixed income":
		return models.AssetTypeBond
	case "cash", "money market":
		return models.AssetTypeCash
	case "commodity", "commodities":
		return models.AssetTypeCommodity
	case "reit", "real estate", "property":
		return models.AssetTypeREIT
	case "crypto", "cryptocurrency":
		return models.AssetTypeCrypto
	case "":
		return models.AssetTypeStock
	default:
		return models.AssetTypeUnknown
	}
}

// consistencyWarnings runs the non-fatal cross-row checks: total
// percentage and category vocabulary.
func consistencyWarnings(targets []*models.TargetAllocation) []string {
	var warnings []string

	total := 0.0
	for _, t := range targets {
		total += t.TargetPct
	}
	if len(targets) > 0 && !nearlyEqual(total, 100) {
		warnings = append(warnings, fmt.Sprintf("total target percentage is %.2f%%, not 100%%", total))
	}

	for _, t := range targets {
		if t.AssetCategory == "" {
			continue
		}
		if !knownCategory(t.AssetType, t.AssetCategory) {
			warnings = append(warnings, fmt.Sprintf("unrecognized category %q for asset type %s", t.AssetCategory, t.AssetType))
		}
	}
	return warnings
}

func knownCategory(assetType models.AssetType, category string) bool {
	lower := strings.ToLower(strings.TrimSpace(category))
	for _, known := range categoryVocabulary[assetType] {
		if lower == known {
			return true
		}
	}
	return false
}

func nearlyEqual(a, b float64) bool {
	diff := a - b
	return diff > -0.01 && diff < 0.01
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
