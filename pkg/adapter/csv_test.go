package adapter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRowsCSV(t *testing.T) {
	base, mock := newMockBase(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"name", "n", "ok", "at", "note"}).
			AddRow("a,b", int64(1), true, ts, nil).
			AddRow([]byte("plain"), int64(2), false, ts, "x"),
	)

	rows, err := base.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var buf bytes.Buffer
	n, err := WriteRowsCSV(rows.Rows, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t,
		"\"a,b\",1,true,2024-03-01T12:00:00Z,\\N\n"+
			"plain,2,false,2024-03-01T12:00:00Z,x\n",
		buf.String())
}

func TestReadCSV(t *testing.T) {
	input := "a,1,\\N\n\"b,c\",2,z\n,3,\"\"\n"

	var got [][]any
	n, err := ReadCSV(strings.NewReader(input), 3, func(rec []any) error {
		got = append(got, append([]any(nil), rec...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, [][]any{
		{"a", "1", nil},
		{"b,c", "2", "z"},
		{"", "3", ""},
	}, got)
}

func TestCSV_SingleColumnNullAndEmpty(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"note"}).
			AddRow("a").
			AddRow(nil).
			AddRow("").
			AddRow("b"),
	)

	rows, err := base.Query(context.Background(), "SELECT note FROM t")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var buf bytes.Buffer
	written, err := WriteRowsCSV(rows.Rows, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), written)
	assert.Equal(t, "a\n\\N\n\"\"\nb\n", buf.String())

	var got []any
	read, err := ReadCSV(&buf, 1, func(rec []any) error {
		got = append(got, rec[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, written, read, "every row survives the round trip")
	assert.Equal(t, []any{"a", nil, "", "b"}, got)
}

func TestReadCSV_Errors(t *testing.T) {
	t.Run("wrong field count", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a,b\n"), 3, func([]any) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record 1")
	})

	t.Run("callback error stops reading", func(t *testing.T) {
		calls := 0
		n, err := ReadCSV(strings.NewReader("a\nb\n"), 1, func([]any) error {
			calls++
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, int64(0), n)
		assert.Equal(t, 1, calls)
	})
}
