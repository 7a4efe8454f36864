package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	ds := Dataset{Title: "Inventory", Headers: []string{"Name", "Category", "Available"}}
	ds.Append(map[string]string{"Name": "ThinkPad, T14", "Category": "Laptop", "Available": "3"})
	ds.Append(map[string]string{"Name": "Desk", "Category": "Furniture"})
	return ds
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Category,Available", lines[0])
	assert.Equal(t, `"ThinkPad, T14",Laptop,3`, lines[1])
	assert.Equal(t, "Desk,Furniture,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	ds := sampleDataset()
	for i := 0; i < 80; i++ {
		ds.Append(map[string]string{"Name": strings.Repeat("long-name-", 10), "Category": "Other"})
	}
	out, err := NewPDFExporter().Render(ds)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)

	r, err := RendererFor(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())
	assert.Equal(t, "pdf", r.Extension())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := strings.Repeat("a", maxCellRunes+5)
	assert.Len(t, []rune(truncate(long)), maxCellRunes)
}
