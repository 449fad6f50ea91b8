package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/labalert/internal/model"
)

func TestWriteResults(t *testing.T) {
	crit := model.FromPrimaryFields("P004", "Sophie Martin", "Température", 39.2, "°C", true)
	crit.SetDoctorNotes("Fever, recheck in 2 hours")
	normal := model.FromPrimaryFields("P002", "Fatima Zohra", "Tension", 120, "mmHg", false)

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, []*model.ResultRecord{crit, normal}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, crit.ID(), rows[1][0])
	assert.Equal(t, "Sophie Martin", rows[1][2])
	assert.Equal(t, "39.2", rows[1][4])
	assert.Equal(t, "36.5-37.5 °C", rows[1][6])
	assert.Equal(t, "CRITICAL", rows[1][7])
	assert.Equal(t, "Fever, recheck in 2 hours", rows[1][9])
	assert.Equal(t, "NORMAL", rows[2][7])
}

func TestWriteResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "lab-results-recent.xlsx", FileName("recent"))
}
