package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db}, mock
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	t.Run("nil DB", func(t *testing.T) {
		base := &BaseSQLAdapter{}
		assert.NoError(t, base.Close())
	})

	t.Run("open DB", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()

		base := &BaseSQLAdapter{DB: db}
		require.NoError(t, base.Close())
		assert.False(t, base.IsConnected())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	base := &BaseSQLAdapter{}

	assert.ErrorIs(t, base.Exec(ctx, "SELECT 1"), ErrNotConnected)

	rows, err := base.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, rows)

	assert.ErrorIs(t, base.SwapTableCommon(ctx, `"a"`, `"b"`, `"b"`), ErrNotConnected)
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		errMsg    string
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "driver error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE t").WillReturnError(assert.AnError)
			},
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			tt.setupMock(mock)

			err := base.Exec(context.Background(), "CREATE TABLE t (id INT)")
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectQuery("SELECT schema_name").WillReturnRows(
		sqlmock.NewRows([]string{"schema_name", "table_name"}).
			AddRow("public", "a").
			AddRow("public", "b"),
	)

	rows, err := base.Query(context.Background(), "SELECT schema_name, table_name FROM tables")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var n int
	for rows.Next() {
		n++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 2, n)
}

func TestCountRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "pytest"."list_of_tables"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	a := &stubAdapter{BaseSQLAdapter: BaseSQLAdapter{DB: db}}
	n, err := CountRows(context.Background(), a, TableRef{Schema: "pytest", Name: "list_of_tables"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_SwapTableCommon(t *testing.T) {
	const (
		staged = `"s"."t__datarade_new"`
		target = `"s"."t"`
	)

	t.Run("commits drop and rename", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "s"."t"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "s"."t__datarade_new" RENAME TO "t"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, base.SwapTableCommon(context.Background(), staged, target, `"t"`))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when rename fails", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("DROP TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("ALTER TABLE").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := base.SwapTableCommon(context.Background(), staged, target, `"t"`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to rename")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"table_name", `"table_name"`},
		{"user", `"user"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteIdent(tt.in))
	}

	assert.Equal(t, `"SANDBOX"."pytest"."t"`, QuoteQualified("SANDBOX", "pytest", "t"))
	assert.Equal(t, `"t"`, QuoteQualified("", "", "t"))
}
