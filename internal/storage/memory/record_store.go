// Package memory holds in-memory implementations of the storage interfaces
// for tests and local runs without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/yamelab/medref/internal/ingest"
)

// RecordStore keeps upserted records per table, keyed like the postgres
// store keys its rows.
type RecordStore struct {
	mu     sync.Mutex
	tables map[string]map[string]ingest.Record
}

// NewRecordStore builds an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{tables: make(map[string]map[string]ingest.Record)}
}

// Upsert applies the same semantics as the postgres store: insert, update on
// change, skip when unchanged, errors contained per record.
func (s *RecordStore) Upsert(_ context.Context, table string, records []ingest.Record, key string, force bool) ingest.SaveResult {
	return s.upsert(table, records, func(r ingest.Record) (string, bool) {
		return fieldString(r, key)
	}, force)
}

// UpsertCompound keys records by several fields joined together. Missing
// fields key as empty strings.
func (s *RecordStore) UpsertCompound(_ context.Context, table string, records []ingest.Record, keys []string, force bool) ingest.SaveResult {
	return s.upsert(table, records, func(r ingest.Record) (string, bool) {
		parts := make([]string, len(keys))
		present := false
		for i, key := range keys {
			val, ok := fieldString(r, key)
			if ok {
				present = true
			}
			parts[i] = val
		}
		return strings.Join(parts, "\x1f"), present
	}, force)
}

func (s *RecordStore) upsert(table string, records []ingest.Record, keyFn func(ingest.Record) (string, bool), force bool) ingest.SaveResult {
	start := time.Now()
	result := ingest.SaveResult{Total: len(records)}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]ingest.Record)
		s.tables[table] = rows
	}

	for _, record := range records {
		keyVal, ok := keyFn(record)
		if !ok {
			result.Errors++
			continue
		}
		existing, found := rows[keyVal]
		switch {
		case !found:
			rows[keyVal] = record
			result.Saved++
		case !force && reflect.DeepEqual(existing, record):
			result.Skipped++
		default:
			rows[keyVal] = record
			result.Updated++
		}
	}

	result.Elapsed = time.Since(start)
	return result
}

// Get returns the stored record for a single-field key.
func (s *RecordStore) Get(table, keyVal string) (ingest.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tables[table][keyVal]
	return record, ok
}

// Len counts stored rows in a table.
func (s *RecordStore) Len(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

func fieldString(record ingest.Record, key string) (string, bool) {
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
