package statement

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/bobmcallan/tiller/internal/models"
)

// Metadata patterns — compiled once.
var (
	accountPattern   = regexp.MustCompile(`Account:?\s+([A-Za-z*]*[\d*][A-Za-z0-9*]*)`)
	dateRangePattern = regexp.MustCompile(`([A-Z][a-z]+ \d{1,2}, \d{4})\s*-\s*([A-Z][a-z]+ \d{1,2}, \d{4})`)
	generatedPattern = regexp.MustCompile(`Generated:?\s*(\d{4}-\d{2}-\d{2})`)
	currencyPattern  = regexp.MustCompile(`(?:Base )?Currency:?\s*([A-Z]{3})`)
	cashPattern      = regexp.MustCompile(`(?:Ending Cash|Cash)[:\s]\s*\$?(-?[\d,]+(?:\.\d+)?)`)
	numberPattern    = regexp.MustCompile(`^-?[\d,]+(?:\.\d+)?$`)
	symbolPattern    = regexp.MustCompile(`^[A-Z0-9]+$`)
	mtmSymbolPattern = regexp.MustCompile(`^[A-Z]{2,6}$`)
)

// Header keyword lines to skip past when locating the first data row.
var headerKeywords = []string{
	"symbol", "quantity", "mult", "cost price", "cost basis",
	"close price", "value", "unrealized", "code",
}

// Currency prefixes that statement layouts glue onto the symbol token.
// "Stocks" is the section name, also seen glued, optionally combined with
// a currency ("StocksEUR").
var currencyPrefixes = []string{"USD", "EUR", "GBP", "JPY"}

// ParsePDF extracts the plain text from PDF bytes and parses it.
func (s *Service) ParsePDF(pdfBytes []byte) (*models.ParsedStatement, error) {
	text, err := extractText(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}
	return s.ParsePDFText(text), nil
}

// extractText extracts plain text from a PDF document page by page.
func extractText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	totalPages := r.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ParsePDFText parses already-extracted statement text. Two segmentation
// strategies are tried in order; the first yielding holdings wins. A
// statement with no recognizable section yields zero holdings, not an
// error — the caller treats that as a reportable condition.
func (s *Service) ParsePDFText(text string) *models.ParsedStatement {
	result := &models.ParsedStatement{BaseCurrency: "USD"}

	if m := accountPattern.FindStringSubmatch(text); m != nil {
		result.AccountID = m[1]
	}

	result.StatementDate = parseStatementDate(text)

	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		result.BaseCurrency = m[1]
	}

	if m := cashPattern.FindStringSubmatch(text); m != nil {
		if v, err := parseNumber(m[1]); err == nil {
			result.Cash = v
		}
	}

	result.Holdings = s.parseOpenPositions(text)
	if len(result.Holdings) == 0 {
		result.Holdings = s.parseMarkToMarket(text)
	}

	for _, h := range result.Holdings {
		result.TotalValue += h.Value
	}
	result.TotalValue += result.Cash

	s.logger.Info().
		Str("account", result.AccountID).
		Str("date", result.StatementDate.Format("2006-01-02")).
		Int("holdings", len(result.Holdings)).
		Msg("Parsed PDF statement text")

	return result
}

// parseStatementDate prefers a date range (end date), then a Generated
// token, then today.
func parseStatementDate(text string) time.Time {
	if m := dateRangePattern.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("January 2, 2006", m[2]); err == nil {
			return d
		}
	}
	if m := generatedPattern.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("2006-01-02", m[1]); err == nil {
			return d
		}
	}
	return time.Now()
}

// --- Strategy A: "Open Positions" section ---

// parseOpenPositions locates the Open Positions window and parses its rows
// in either the vertical (row-per-field) or horizontal (row-per-line)
// sub-layout.
func (s *Service) parseOpenPositions(text string) []models.ParsedHolding {
	start := strings.Index(text, "Open Positions")
	if start < 0 {
		return nil
	}
	window := text[start:]
	end := len(window)
	for _, marker := range []string{"Forex", "Notes"} {
		if idx := strings.Index(window[len("Open Positions"):], marker); idx >= 0 {
			if pos := idx + len("Open Positions"); pos < end {
				end = pos
			}
		}
	}
	lines := splitLines(window[:end])

	headerIdx := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "symbol") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	// Skip past header keyword lines to the first data line.
	dataStart := headerIdx + 1
	for dataStart < len(lines) && isHeaderKeywordLine(lines[dataStart]) {
		dataStart++
	}
	if dataStart >= len(lines) {
		return nil
	}

	if isHorizontalDataLine(lines[dataStart]) {
		return s.parseHorizontalRows(lines[dataStart:])
	}
	return s.parseVerticalRows(lines[dataStart:])
}

// isHeaderKeywordLine reports whether a line is part of the column header
// block rather than data.
func isHeaderKeywordLine(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	if l == "" {
		return false
	}
	if _, err := parseNumber(l); err == nil {
		return false
	}
	for _, kw := range headerKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// isHorizontalDataLine detects the horizontal sub-layout: a data line with
// a comma or multiple space-separated numeric tokens.
func isHorizontalDataLine(line string) bool {
	if strings.Contains(line, ",") {
		return true
	}
	numeric := 0
	for _, tok := range strings.Fields(line) {
		if numberPattern.MatchString(tok) {
			numeric++
		}
	}
	return numeric > 1
}

// Field indices within a row's numeric fields.
const (
	fieldQuantity   = 0
	fieldClosePrice = 4
	fieldValue      = 5
	rowNumericMin   = 6 // fewer parseable numeric fields → row skipped
	verticalRowSize = 9 // symbol line + 8 field lines when Code is present
)

// parseVerticalRows walks the vertical layout: each complete holding
// occupies nine lines (symbol + Quantity, Mult, Cost Price, Cost Basis,
// Close Price, Value, Unrealized P/L, Code). The Code line is sometimes
// absent; the cursor advances by the computed row size, eight or nine, so
// row boundaries resynchronize after a malformed row.
func (s *Service) parseVerticalRows(lines []string) []models.ParsedHolding {
	var holdings []models.ParsedHolding

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		// Filler between rows: blank lines, totals, bare currency codes.
		if line == "" || strings.EqualFold(line, "Total") || isCurrencyCode(line) {
			i++
			continue
		}

		currency, symbol := recoverSymbol(line)
		if symbol == "" {
			// Not a symbol anchor — advance one line to resync.
			s.logger.Debug().Str("line", line).Msg("Skipping unrecognized line in positions section")
			i++
			continue
		}

		// Collect the numeric field lines following the symbol.
		var fields []float64
		for k := 1; k <= 7 && i+k < len(lines); k++ {
			v, err := parseNumber(lines[i+k])
			if err != nil {
				break
			}
			fields = append(fields, v)
		}

		// Row size: when the line at the expected Code position looks like
		// the next row's symbol rather than a code, this row has no Code
		// field. A code token is symbol-shaped too, so peek one further:
		// a next-row symbol is followed by its quantity line.
		rowSize := verticalRowSize
		if i+8 < len(lines) {
			if _, next := recoverSymbol(lines[i+8]); next != "" {
				if i+9 < len(lines) {
					if _, err := parseNumber(lines[i+9]); err == nil {
						rowSize = verticalRowSize - 1
					}
				}
			}
		}

		if len(fields) < rowNumericMin {
			s.logger.Debug().Str("symbol", symbol).Int("fields", len(fields)).Msg("Skipping malformed position row")
			i += rowSize
			continue
		}

		quantity := fields[fieldQuantity]
		price := fields[fieldClosePrice]
		if quantity <= 0 || price <= 0 {
			s.logger.Debug().Str("symbol", symbol).Msg("Skipping non-positive position row")
			i += rowSize
			continue
		}
		value := 0.0
		if len(fields) > fieldValue {
			value = fields[fieldValue]
		}
		if value == 0 {
			value = quantity * price
		}

		holdings = append(holdings, models.ParsedHolding{
			Symbol:   symbol,
			Quantity: quantity,
			Price:    price,
			Value:    value,
			Currency: currency,
		})
		i += rowSize
	}

	return holdings
}

// parseHorizontalRows walks the horizontal layout: one whitespace-tokenized
// line per holding, symbol first, numeric fields in row order after it.
func (s *Service) parseHorizontalRows(lines []string) []models.ParsedHolding {
	var holdings []models.ParsedHolding

	for _, line := range lines {
		tokens := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(tokens) < 2 {
			continue
		}

		currency, symbol := recoverSymbol(tokens[0])
		if symbol == "" {
			continue
		}

		var fields []float64
		for _, tok := range tokens[1:] {
			v, err := parseNumber(tok)
			if err != nil {
				continue
			}
			fields = append(fields, v)
		}
		if len(fields) < rowNumericMin {
			continue
		}

		quantity := fields[fieldQuantity]
		price := fields[fieldClosePrice]
		if quantity <= 0 || price <= 0 {
			continue
		}
		value := fields[fieldValue]
		if value == 0 {
			value = quantity * price
		}

		holdings = append(holdings, models.ParsedHolding{
			Symbol:   symbol,
			Quantity: quantity,
			Price:    price,
			Value:    value,
			Currency: currency,
		})
	}

	return holdings
}

// --- Strategy B: "Mark-to-Market Performance Summary" section ---

// parseMarkToMarket is the fallback for statements without an Open
// Positions section. The section carries Prior/Current pairs: the first
// four numeric tokens after the symbol are Prior Quantity, Current
// Quantity, Prior Price, Current Price. No per-symbol currency exists here.
func (s *Service) parseMarkToMarket(text string) []models.ParsedHolding {
	start := strings.Index(text, "Mark-to-Market Performance Summary")
	if start < 0 {
		return nil
	}
	window := text[start:]
	end := len(window)
	for _, marker := range []string{"Realized", "Change in NAV", "Notes"} {
		if idx := strings.Index(window[1:], marker); idx >= 0 && idx+1 < end {
			end = idx + 1
		}
	}
	lines := splitLines(window[:end])

	headerIdx := -1
	for i, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "symbol") && strings.Contains(l, "quantity") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	var holdings []models.ParsedHolding
	for _, line := range lines[headerIdx+1:] {
		tokens := strings.Fields(line)

		symbolIdx := -1
		for i, tok := range tokens {
			if mtmSymbolPattern.MatchString(tok) {
				symbolIdx = i
				break
			}
		}
		if symbolIdx < 0 {
			continue
		}

		var nums []float64
		for _, tok := range tokens[symbolIdx+1:] {
			if v, err := parseNumber(tok); err == nil {
				nums = append(nums, v)
			}
		}
		if len(nums) < 4 {
			continue
		}

		quantity := nums[1]
		price := nums[3]
		if quantity <= 0 || price <= 0 {
			continue
		}

		holdings = append(holdings, models.ParsedHolding{
			Symbol:   tokens[symbolIdx],
			Quantity: quantity,
			Price:    price,
			Value:    quantity * price,
		})
	}

	return holdings
}

// --- Symbol recovery ---

// recoverSymbol strips any glued section/currency prefix from a token and
// recovers the ticker as the longest uppercase-alphanumeric suffix (5 down
// to 1 characters) containing at least one letter. When a currency prefix
// was present it also determines the holding's trading currency.
func recoverSymbol(token string) (currency, symbol string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ""
	}

	rest := strings.TrimPrefix(token, "Stocks")
	for _, cur := range currencyPrefixes {
		if strings.HasPrefix(rest, cur) && len(rest) > len(cur) {
			currency = cur
			rest = rest[len(cur):]
			break
		}
	}

	for size := 5; size >= 1; size-- {
		if size > len(rest) {
			continue
		}
		cand := rest[len(rest)-size:]
		if symbolPattern.MatchString(cand) && hasLetter(cand) {
			return currency, cand
		}
	}

	return "", ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func isCurrencyCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return false
	}
	for _, cur := range []string{"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "HKD", "SGD"} {
		if s == cur {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}
