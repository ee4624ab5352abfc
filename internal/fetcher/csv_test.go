package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "id,name\n1,Vail\n2,Stowe\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	rows := collectRows(t, rowCh, errCh)

	assert.Equal(t, []string{"id", "name"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "Vail"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(" a , b \n"), CSVOptions{TrimSpace: true})
	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_QuotedFields(t *testing.T) {
	input := "1,\"DaVita, Inc.\",\"123 \"\"Main\"\" St\"\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, "DaVita, Inc.", rows[0][1])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows := collectRows(t, rowCh, errCh)
	assert.Empty(t, rows)
}

func TestDecodeJSONObject(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	obj, err := DecodeJSONObject[payload](strings.NewReader(`{"name":"vail"}`))
	require.NoError(t, err)
	assert.Equal(t, "vail", obj.Name)

	_, err = DecodeJSONObject[payload](strings.NewReader(`{broken`))
	assert.Error(t, err)
}
