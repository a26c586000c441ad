package target

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/bobmcallan/tiller/internal/models"
)

// ParseExcel parses a target-allocation workbook. An empty sheetName
// selects the first sheet. Row-level validation follows the CSV path.
func (s *Service) ParseExcel(data []byte, sheetName string) (*models.TargetImport, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	return s.importRows(rows), nil
}
