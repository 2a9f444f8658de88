package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/ingest"
)

// RecordStore persists normalized records as jsonb documents, one table per
// domain, keyed by the domain's natural key column(s).
type RecordStore struct {
	pool   dbPool
	logger *zap.Logger
}

// NewRecordStore builds a store on a live pool.
func NewRecordStore(pool *pgxpool.Pool, logger *zap.Logger) *RecordStore {
	return NewRecordStoreWithPool(pool, logger)
}

// NewRecordStoreWithPool builds a store on any pool implementation, which is
// how tests inject pgxmock.
func NewRecordStoreWithPool(pool dbPool, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{pool: pool, logger: logger}
}

// Upsert writes each record under its single natural-key value. A record
// whose stored document is unchanged is skipped unless force is set. Bad
// records are counted and never abort the batch.
func (s *RecordStore) Upsert(ctx context.Context, table string, records []ingest.Record, key string, force bool) ingest.SaveResult {
	start := time.Now()
	result := ingest.SaveResult{Total: len(records)}
	if err := checkIdent(table); err != nil {
		result.Errors = len(records)
		result.Elapsed = time.Since(start)
		s.logger.Error("refusing upsert", zap.Error(err))
		return result
	}

	for _, record := range records {
		keyVal, ok := keyValue(record, key)
		if !ok {
			result.Errors++
			s.logger.Warn("record missing natural key", zap.String("table", table), zap.String("key", key))
			continue
		}
		doc, err := json.Marshal(record)
		if err != nil {
			result.Errors++
			continue
		}

		switch err := s.writeOne(ctx, table, keyVal, doc, force); err {
		case nil:
			result.Saved++
		case errUpdated:
			result.Updated++
		case errSkipped:
			result.Skipped++
		default:
			result.Errors++
			s.logger.Warn("record upsert failed",
				zap.String("table", table),
				zap.String("naturalKey", keyVal),
				zap.Error(err),
			)
		}
	}

	result.Elapsed = time.Since(start)
	return result
}

var (
	errUpdated = errors.New("updated")
	errSkipped = errors.New("skipped")
)

func (s *RecordStore) writeOne(ctx context.Context, table, keyVal string, doc []byte, force bool) error {
	var existing []byte
	selectSQL := fmt.Sprintf(`SELECT doc FROM %s WHERE natural_key = $1`, table)
	err := s.pool.QueryRow(ctx, selectSQL, keyVal).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		insertSQL := fmt.Sprintf(`INSERT INTO %s (natural_key, doc, updated_at) VALUES ($1, $2, now())`, table)
		if _, err := s.pool.Exec(ctx, insertSQL, keyVal, doc); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}

	if !force && jsonDocsEqual(existing, doc) {
		return errSkipped
	}

	updateSQL := fmt.Sprintf(`UPDATE %s SET doc = $2, updated_at = now() WHERE natural_key = $1`, table)
	if _, err := s.pool.Exec(ctx, updateSQL, keyVal, doc); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return errUpdated
}

// UpsertCompound writes records keyed by several fields in one statement per
// record, using the conflict target to decide insert versus update and a
// distinctness guard to detect no-op writes.
func (s *RecordStore) UpsertCompound(ctx context.Context, table string, records []ingest.Record, keys []string, force bool) ingest.SaveResult {
	start := time.Now()
	result := ingest.SaveResult{Total: len(records)}
	if err := checkIdent(table); err != nil {
		result.Errors = len(records)
		result.Elapsed = time.Since(start)
		s.logger.Error("refusing upsert", zap.Error(err))
		return result
	}
	columns := make([]string, len(keys))
	for i, key := range keys {
		columns[i] = snakeColumn(key)
		if err := checkIdent(columns[i]); err != nil {
			result.Errors = len(records)
			result.Elapsed = time.Since(start)
			s.logger.Error("refusing upsert", zap.Error(err))
			return result
		}
	}
	upsertSQL := compoundUpsertSQL(table, columns, force)

	for _, record := range records {
		args := make([]any, 0, len(keys)+1)
		present := false
		for _, key := range keys {
			val, ok := keyValue(record, key)
			if ok {
				present = true
			}
			args = append(args, val)
		}
		if !present {
			result.Errors++
			s.logger.Warn("record missing every natural key", zap.String("table", table))
			continue
		}
		doc, err := json.Marshal(record)
		if err != nil {
			result.Errors++
			continue
		}
		args = append(args, doc)

		var inserted bool
		err = s.pool.QueryRow(ctx, upsertSQL, args...).Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			result.Skipped++
		case err != nil:
			result.Errors++
			s.logger.Warn("record upsert failed", zap.String("table", table), zap.Error(err))
		case inserted:
			result.Saved++
		default:
			result.Updated++
		}
	}

	result.Elapsed = time.Since(start)
	return result
}

func compoundUpsertSQL(table string, columns []string, force bool) string {
	placeholders := make([]string, len(columns)+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	guard := ""
	if !force {
		guard = fmt.Sprintf(" WHERE %s.doc IS DISTINCT FROM EXCLUDED.doc", table)
	}
	return fmt.Sprintf(
		`INSERT INTO %s (%s, doc, updated_at) VALUES (%s, now()) ON CONFLICT (%s) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()%s RETURNING (xmax = 0)`,
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(columns, ", "),
		guard,
	)
}

// keyValue renders a record field as its key string. Missing or nil fields
// are not keys; compound callers map them to "" themselves.
func keyValue(record ingest.Record, key string) (string, bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// snakeColumn converts a canonical fooBar key to its foo_bar column.
func snakeColumn(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// jsonDocsEqual compares two documents structurally so key order and
// insignificant whitespace never force an update.
func jsonDocsEqual(a, b []byte) bool {
	var av, bv any
	da := json.NewDecoder(bytes.NewReader(a))
	da.UseNumber()
	if err := da.Decode(&av); err != nil {
		return false
	}
	db := json.NewDecoder(bytes.NewReader(b))
	db.UseNumber()
	if err := db.Decode(&bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
