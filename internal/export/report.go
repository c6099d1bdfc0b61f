package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sisko/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

var reportColumns = []string{"ID", "Entity", "Entity ID", "Type", "Method", "Endpoint", "Status", "Retries", "Last Error", "Queued At"}

// WriteQueueReport dumps the queue to an .xlsx workbook for operator audit
// (what is stuck, what failed, what awaits resolution). Returns the path of
// the written file.
func WriteQueueReport(dir string, actions []models.ActionRecord, logger *zerolog.Logger) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Offline Queue"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for col, title := range reportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	for i, a := range actions {
		row := i + 2
		lastError := ""
		if a.LastError != nil {
			lastError = *a.LastError
		}
		values := []any{
			a.ID, a.Entity, a.EntityID, a.Type, a.Method, a.Endpoint,
			a.Status, a.RetryCount, lastError, a.Timestamp.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "J", 20)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("queue_report_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	logger.Info().Str("file_path", filePath).Int("actions", len(actions)).Msg("queue report written")
	return filePath, nil
}
