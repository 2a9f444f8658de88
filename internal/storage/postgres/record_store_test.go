package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/ingest"
)

func newMockRecordStore(t *testing.T) (*RecordStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRecordStoreWithPool(mock, zap.NewNop()), mock
}

func TestUpsertInsertsNewRecord(t *testing.T) {
	store, mock := newMockRecordStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM hospitals WHERE natural_key = $1`)).
		WithArgs("A1100001").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO hospitals (natural_key, doc, updated_at) VALUES ($1, $2, now())`)).
		WithArgs("A1100001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	records := []ingest.Record{{"hpid": "A1100001", "dutyName": "Seoul Medical Center"}}
	result := store.Upsert(context.Background(), "hospitals", records, "hpid", false)

	require.Equal(t, ingest.SaveResult{Total: 1, Saved: 1, Elapsed: result.Elapsed}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkipsUnchangedRecord(t *testing.T) {
	store, mock := newMockRecordStore(t)

	stored, _ := json.Marshal(map[string]any{"hpid": "A1100001", "dutyName": "Seoul Medical Center"})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM hospitals WHERE natural_key = $1`)).
		WithArgs("A1100001").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(stored))

	records := []ingest.Record{{"dutyName": "Seoul Medical Center", "hpid": "A1100001"}}
	result := store.Upsert(context.Background(), "hospitals", records, "hpid", false)

	require.Equal(t, 1, result.Skipped)
	require.Zero(t, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUpdatesChangedRecord(t *testing.T) {
	store, mock := newMockRecordStore(t)

	stored, _ := json.Marshal(map[string]any{"hpid": "A1100001", "dutyName": "old name"})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM hospitals WHERE natural_key = $1`)).
		WithArgs("A1100001").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(stored))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE hospitals SET doc = $2, updated_at = now() WHERE natural_key = $1`)).
		WithArgs("A1100001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	records := []ingest.Record{{"hpid": "A1100001", "dutyName": "new name"}}
	result := store.Upsert(context.Background(), "hospitals", records, "hpid", false)

	require.Equal(t, 1, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertForceRewritesUnchangedRecord(t *testing.T) {
	store, mock := newMockRecordStore(t)

	stored, _ := json.Marshal(map[string]any{"hpid": "A1100001"})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM hospitals WHERE natural_key = $1`)).
		WithArgs("A1100001").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(stored))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE hospitals SET doc = $2, updated_at = now() WHERE natural_key = $1`)).
		WithArgs("A1100001", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	records := []ingest.Record{{"hpid": "A1100001"}}
	result := store.Upsert(context.Background(), "hospitals", records, "hpid", true)

	require.Equal(t, 1, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCountsRecordWithoutKey(t *testing.T) {
	store, mock := newMockRecordStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM hospitals WHERE natural_key = $1`)).
		WithArgs("A1100002").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO hospitals`)).
		WithArgs("A1100002", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	records := []ingest.Record{
		{"dutyName": "no key here"},
		{"hpid": "A1100002", "dutyName": "has key"},
	}
	result := store.Upsert(context.Background(), "hospitals", records, "hpid", false)

	require.Equal(t, 2, result.Total)
	require.Equal(t, 1, result.Errors)
	require.Equal(t, 1, result.Saved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsBadTableName(t *testing.T) {
	store, _ := newMockRecordStore(t)

	records := []ingest.Record{{"hpid": "x"}}
	result := store.Upsert(context.Background(), "hospitals; DROP TABLE x", records, "hpid", false)
	require.Equal(t, 1, result.Errors)
}

func TestUpsertCompoundInsertAndSkip(t *testing.T) {
	store, mock := newMockRecordStore(t)

	sql := compoundUpsertSQL("dur_mixture_rules", []string{"type_name", "ingr_code", "mixture_ingr_code"}, false)

	mock.ExpectQuery(regexp.QuoteMeta(sql)).
		WithArgs("병용금기", "D000001", "D000002", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(sql)).
		WithArgs("병용금기", "D000001", "D000003", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	records := []ingest.Record{
		{"typeName": "병용금기", "ingrCode": "D000001", "mixtureIngrCode": "D000002"},
		{"typeName": "병용금기", "ingrCode": "D000001", "mixtureIngrCode": "D000003"},
	}
	result := store.UpsertCompound(context.Background(), "dur_mixture_rules",
		records, []string{"typeName", "ingrCode", "mixtureIngrCode"}, false)

	require.Equal(t, 1, result.Saved)
	require.Equal(t, 1, result.Skipped)
	require.Zero(t, result.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCompoundMissingKeyBecomesEmptyString(t *testing.T) {
	store, mock := newMockRecordStore(t)

	sql := compoundUpsertSQL("dur_mixture_rules", []string{"type_name", "ingr_code"}, true)
	mock.ExpectQuery(regexp.QuoteMeta(sql)).
		WithArgs("노인주의", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))

	records := []ingest.Record{{"typeName": "노인주의"}}
	result := store.UpsertCompound(context.Background(), "dur_mixture_rules",
		records, []string{"typeName", "ingrCode"}, true)

	require.Equal(t, 1, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCompoundCountsRecordWithNoKeys(t *testing.T) {
	store, mock := newMockRecordStore(t)

	records := []ingest.Record{{"remark": "keyless"}}
	result := store.UpsertCompound(context.Background(), "dur_mixture_rules",
		records, []string{"typeName", "ingrCode"}, false)

	require.Equal(t, 1, result.Errors)
	require.Zero(t, result.Saved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnakeColumn(t *testing.T) {
	require.Equal(t, "type_name", snakeColumn("typeName"))
	require.Equal(t, "mixture_ingr_code", snakeColumn("mixtureIngrCode"))
	require.Equal(t, "hpid", snakeColumn("hpid"))
}
