package export

import (
	"encoding/json"
	"testing"
	"time"

	"sisko/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestWriteQueueReport(t *testing.T) {
	msg := "Server error: 500 Internal Server Error"
	actions := []models.ActionRecord{
		{
			ID:         "a1",
			Type:       models.ActionCreate,
			Entity:     "grade",
			EntityID:   models.EntityIDUnknown,
			Data:       json.RawMessage(`{"score":85}`),
			Endpoint:   "/api/grades",
			Method:     "POST",
			Timestamp:  time.Now(),
			Status:     models.StatusFailed,
			RetryCount: 2,
			LastError:  &msg,
		},
		{
			ID:        "a2",
			Type:      models.ActionUpdate,
			Entity:    "attendance",
			EntityID:  "att-1",
			Endpoint:  "/api/attendance/att-1",
			Method:    "PUT",
			Timestamp: time.Now(),
			Status:    models.StatusConflict,
		},
	}

	dir := t.TempDir()
	path, err := WriteQueueReport(dir, actions, testLogger())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Offline Queue", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)

	id, err := f.GetCellValue("Offline Queue", "A2")
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	status, err := f.GetCellValue("Offline Queue", "G3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflict, status)

	lastError, err := f.GetCellValue("Offline Queue", "I2")
	require.NoError(t, err)
	assert.Equal(t, msg, lastError)
}

func TestWriteQueueReportEmptyQueue(t *testing.T) {
	path, err := WriteQueueReport(t.TempDir(), nil, testLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}
