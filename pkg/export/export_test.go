package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payrollDataset() Dataset {
	return Dataset{
		Headers: []string{"Teacher", "Class", "Amount"},
		Rows: []map[string]string{
			{"Teacher": "Ann", "Class": "Piano A", "Amount": "1200.00"},
			{"Teacher": "Bo", "Amount": "300.00"},
		},
		Footer: map[string]string{"Teacher": "Total", "Amount": "1500.00"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(payrollDataset())
	require.NoError(t, err)

	expected := "Teacher,Class,Amount\nAnn,Piano A,1200.00\nBo,,300.00\nTotal,,1500.00\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := payrollDataset()
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, map[string]string{"Teacher": "Cy", "Amount": "10.00"})
	}

	out, err := NewPDFExporter().Render(data, PDFOptions{Title: "Payroll", Subtitle: "January 2024", Landscape: true})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
