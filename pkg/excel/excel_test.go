package excel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderAndReadRoundTrip(t *testing.T) {
	data, err := Render(Sheet{
		Name:    "Scores",
		Title:   "Midterm Scores",
		Headers: []string{"Student Code", "Name", "Score"},
		Rows: [][]string{
			{"S001", "Alice", "92.5"},
			{"S002", "Bob", "absent"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	rows, err := ReadRows(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Midterm Scores", rows[0][0])
	require.Equal(t, []string{"Student Code", "Name", "Score"}, rows[1])
	require.Equal(t, "S001", rows[2][0])
	require.Equal(t, "absent", rows[3][2])
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(Sheet{Name: "Empty"})
	require.Error(t, err)
}
