package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markr/internal/roster"
)

func sampleSheet() Sheet {
	return FromRoster("10-A", "2026-03-02", []roster.Student{
		{StudentID: "S1", Name: "Atharva", Status: roster.StatusPresent},
		{StudentID: "S2", Name: "Riya, K.", Status: roster.StatusAbsent},
		{StudentID: "S3", Name: "Arjun", Status: roster.StatusUnmarked},
	})
}

func TestCSVIncludesFullRoster(t *testing.T) {
	out, err := CSV(sampleSheet())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{"Riya, K.", "S2", "absent", "2026-03-02", "10-A"}, records[2])
	assert.Equal(t, "unmarked", records[3][2])
}

func TestPDFRenders(t *testing.T) {
	out, err := PDF(sampleSheet())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestFileName(t *testing.T) {
	s := Sheet{ClassID: "10 A/B", Date: "2026-03-02"}
	assert.Equal(t, "attendance-10_A_B-2026-03-02.csv", s.FileName("csv"))
}
