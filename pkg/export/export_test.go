package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func historyDataset() Dataset {
	return Dataset{
		Columns: []Column{{Key: "employee", Label: "Employee", Width: 2}, {Key: "points", Label: "Points"}},
		Rows: []map[string]string{
			{"employee": "Asha, R", "points": "15"},
			{"employee": "Ben", "points": "10"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter(false).Render(historyDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Equal(t, "Employee,Points", lines[0])
	require.Equal(t, `"Asha, R",15`, lines[1])

	withBOM, err := NewCSVExporter(true).Render(historyDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(withBOM, utf8BOM))
}

func TestExportersRequireColumns(t *testing.T) {
	_, err := NewCSVExporter(false).Render(Dataset{})
	require.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "History", "")
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(historyDataset(), "Points History", "FY 2025 Q1")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsAndTruncate(t *testing.T) {
	widths := columnWidths(historyDataset().Columns)
	require.InDelta(t, pageWidth*2/3, widths[0], 0.001)
	require.InDelta(t, pageWidth/3, widths[1], 0.001)
	require.Len(t, []rune(truncate(strings.Repeat("x", 100))), maxCellRune)
}
