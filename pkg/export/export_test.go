package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Subject", "Mean"},
		Rows: []map[string]string{
			{"Subject": "Math", "Mean": "82.5"},
			{"Subject": "English"},
		},
	}
}

func TestCSVRoundTrips(t *testing.T) {
	data, err := CSV(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Subject", "Mean"}, records[0])
	assert.Equal(t, []string{"Math", "82.5"}, records[1])
	assert.Equal(t, []string{"English", ""}, records[2])
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := CSV(Dataset{})
	require.Error(t, err)
}

func TestPDFRendersDocument(t *testing.T) {
	data, err := PDF(sampleDataset(), "Class Report")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
