package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tiller/internal/models"
)

// Activity-statement CSV sections are multi-layout: every row starts with a
// section name and a row kind (Header/Data), and each section has its own
// column offsets. Open Positions Summary rows carry the holdings.
const (
	sectionStatement   = "Statement"
	sectionAccountInfo = "Account Information"
	sectionPositions   = "Open Positions"
	sectionNAV         = "Net Asset Value"
)

// Open Positions Data/Summary row offsets.
const (
	posFieldCurrency   = 4
	posFieldSymbol     = 5
	posFieldQuantity   = 6
	posFieldMultiplier = 7
	posFieldClosePrice = 10
	posFieldValue      = 11
)

// ParseCSV parses an activity-statement CSV export into a normalized
// statement. Malformed rows are skipped, never fatal.
func (s *Service) ParseCSV(csvText string) (*models.ParsedStatement, error) {
	reader := csv.NewReader(strings.NewReader(csvText))
	// Sections have different column counts.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	result := &models.ParsedStatement{BaseCurrency: "USD"}
	var navTotal float64
	var dateResolved bool

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A single unreadable line must not abort the statement.
			s.logger.Debug().Err(err).Msg("Skipping unreadable CSV line")
			continue
		}
		if len(record) < 2 {
			continue
		}

		section := record[0]
		rowKind := record[1]
		if rowKind != "Data" {
			continue
		}

		switch section {
		case sectionStatement:
			if len(record) < 4 {
				continue
			}
			switch record[2] {
			case "Period":
				if d, ok := parsePeriodEnd(record[3]); ok {
					result.StatementDate = d
					dateResolved = true
				}
			case "WhenGenerated":
				if !dateResolved {
					if d, ok := parseGeneratedDate(record[3]); ok {
						result.StatementDate = d
						dateResolved = true
					}
				}
			}

		case sectionAccountInfo:
			if len(record) < 4 {
				continue
			}
			switch record[2] {
			case "Account":
				result.AccountID = strings.TrimSpace(record[3])
			case "Base Currency":
				if cur := strings.ToUpper(strings.TrimSpace(record[3])); len(cur) == 3 {
					result.BaseCurrency = cur
				}
			}

		case sectionPositions:
			if h, ok := s.parsePositionRow(record); ok {
				result.Holdings = append(result.Holdings, h)
			}

		case sectionNAV:
			if len(record) < 4 {
				continue
			}
			switch record[2] {
			case "Cash":
				if v, err := parseNumber(navField(record)); err == nil {
					result.Cash = v
				}
			case "Total":
				if v, err := parseNumber(navField(record)); err == nil {
					navTotal = v
				}
			}
		}
	}

	if !dateResolved {
		result.StatementDate = time.Now()
	}

	result.TotalValue = navTotal
	if result.TotalValue == 0 {
		for _, h := range result.Holdings {
			result.TotalValue += h.Value
		}
		result.TotalValue += result.Cash
	}

	s.logger.Info().
		Str("account", result.AccountID).
		Str("date", result.StatementDate.Format("2006-01-02")).
		Int("holdings", len(result.Holdings)).
		Msg("Parsed CSV statement")

	return result, nil
}

// parsePositionRow extracts a holding from an Open Positions Data/Summary
// row by fixed positional offset.
func (s *Service) parsePositionRow(record []string) (models.ParsedHolding, bool) {
	var h models.ParsedHolding
	if len(record) < 3 || record[2] != "Summary" {
		return h, false
	}
	if len(record) <= posFieldValue {
		s.logger.Debug().Int("fields", len(record)).Msg("Skipping short position row")
		return h, false
	}

	symbol := strings.TrimSpace(record[posFieldSymbol])
	if symbol == "" {
		return h, false
	}

	quantity, err := parseNumber(record[posFieldQuantity])
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Msg("Skipping position row with unparseable quantity")
		return h, false
	}
	if mult, err := parseNumber(record[posFieldMultiplier]); err == nil && mult != 0 {
		quantity *= mult
	}

	price, err := parseNumber(record[posFieldClosePrice])
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Msg("Skipping position row with unparseable price")
		return h, false
	}

	value, err := parseNumber(record[posFieldValue])
	if err != nil || value == 0 {
		value = quantity * price
	}

	h = models.ParsedHolding{
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
		Value:    value,
		Currency: strings.ToUpper(strings.TrimSpace(record[posFieldCurrency])),
	}
	return h, true
}

// navField picks the value column of a Net Asset Value row. The section
// carries Prior/Current pairs; the current total sits at offset 6, with a
// fallback to the first numeric field for shorter layouts.
func navField(record []string) string {
	if len(record) > 6 {
		if _, err := parseNumber(record[6]); err == nil {
			return record[6]
		}
	}
	for _, f := range record[3:] {
		if _, err := parseNumber(f); err == nil {
			return f
		}
	}
	return ""
}

// parsePeriodEnd parses a "Month D, YYYY - Month D, YYYY" range and returns
// the end date.
func parsePeriodEnd(s string) (time.Time, bool) {
	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return time.Time{}, false
	}
	d, err := time.Parse("January 2, 2006", strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// parseGeneratedDate parses a WhenGenerated timestamp.
func parseGeneratedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02, 15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses a statement numeric field, tolerating thousands
// separators, currency signs, and parenthesized negatives.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if neg {
		v = -v
	}
	return v, nil
}
