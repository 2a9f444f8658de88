package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/queue"
)

func hospitalRecords(n int) []ingest.Record {
	records := make([]ingest.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, ingest.Record{
			"hpid":     fmt.Sprintf("A%07d", i),
			"dutyName": fmt.Sprintf("hospital %d", i),
		})
	}
	return records
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	records := hospitalRecords(10)

	first := store.Upsert(ctx, "hospitals", records, "hpid", false)
	require.Equal(t, 10, first.Saved)
	require.Equal(t, first.Total, first.Saved+first.Updated+first.Skipped+first.Errors)

	second := store.Upsert(ctx, "hospitals", records, "hpid", false)
	require.Zero(t, second.Saved)
	require.Zero(t, second.Updated)
	require.Equal(t, 10, second.Skipped)
	require.Equal(t, 10, store.Len("hospitals"))
}

func TestUpsertForceUpdatesUnchanged(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	records := hospitalRecords(4)

	store.Upsert(ctx, "hospitals", records, "hpid", false)
	result := store.Upsert(ctx, "hospitals", records, "hpid", true)
	require.Equal(t, 4, result.Updated)
	require.Zero(t, result.Skipped)
}

func TestUpsertDetectsChanges(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	records := hospitalRecords(3)

	store.Upsert(ctx, "hospitals", records, "hpid", false)
	records[1]["dutyTel1"] = "02-1234-5678"

	result := store.Upsert(ctx, "hospitals", records, "hpid", false)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 2, result.Skipped)

	updated, ok := store.Get("hospitals", records[1]["hpid"].(string))
	require.True(t, ok)
	require.Equal(t, "02-1234-5678", updated["dutyTel1"])
}

func TestUpsertContainsBadRecords(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	records := hospitalRecords(10)
	delete(records[5], "hpid")

	result := store.Upsert(ctx, "hospitals", records, "hpid", false)
	require.Equal(t, 10, result.Total)
	require.Equal(t, 9, result.Saved)
	require.Equal(t, 1, result.Errors)
	require.Equal(t, result.Total, result.Saved+result.Updated+result.Skipped+result.Errors)
}

func TestUpsertCompoundKeysTogether(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	keys := []string{"typeName", "ingrCode", "mixtureIngrCode"}
	records := []ingest.Record{
		{"typeName": "병용금기", "ingrCode": "D1", "mixtureIngrCode": "D2"},
		{"typeName": "병용금기", "ingrCode": "D1", "mixtureIngrCode": "D3"},
		{"typeName": "병용금기", "ingrCode": "D1"},
	}

	result := store.UpsertCompound(ctx, "dur_mixture_rules", records, keys, false)
	require.Equal(t, 3, result.Saved)

	again := store.UpsertCompound(ctx, "dur_mixture_rules", records, keys, false)
	require.Equal(t, 3, again.Skipped)
}

func TestEnqueueDeduplicatesAndKeepsUrgentPriority(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()

	inserted, err := store.Enqueue(ctx, queue.Item{Source: "WIKIPEDIA", URLOrTitle: "고혈압", Priority: 5})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.Enqueue(ctx, queue.Item{Source: "WIKIPEDIA", URLOrTitle: "고혈압", Priority: 2})
	require.NoError(t, err)
	require.False(t, inserted)

	items, err := store.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Priority)
	require.Equal(t, queue.DefaultLang, items[0].Lang)
}

func TestClaimOrdersByPriorityAndHidesClaimed(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()

	for i, pri := range []int{9, 1, 5} {
		_, err := store.Enqueue(ctx, queue.Item{
			Source:     "WIKIPEDIA",
			URLOrTitle: fmt.Sprintf("title-%d", i),
			Priority:   pri,
		})
		require.NoError(t, err)
	}

	first, err := store.Claim(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, first[0].Priority)
	require.Equal(t, 5, first[1].Priority)

	second, err := store.Claim(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 9, second[0].Priority)
}

func TestResolveIsTerminal(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, queue.Item{Source: "AMC", URLOrTitle: "https://amc.test/1", Priority: 1})
	require.NoError(t, err)
	items, err := store.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, store.Resolve(ctx, items[0].ID, queue.StatusFetched, "ok"))
	require.ErrorIs(t, store.Resolve(ctx, items[0].ID, queue.StatusError, "too late"), queue.ErrTerminal)

	item, ok := store.Item(items[0].ID)
	require.True(t, ok)
	require.Equal(t, queue.StatusFetched, item.Status)
}

func TestPageStoreDeduplicatesByContentHash(t *testing.T) {
	store := NewPageStore()
	ctx := context.Background()

	inserted, err := store.UpsertPage(ctx, queue.SourcePage{Source: "WIKIPEDIA", URL: "u1", ContentHash: "h1"})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.UpsertPage(ctx, queue.SourcePage{Source: "WIKIPEDIA", URL: "u2", ContentHash: "h1"})
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, 1, store.Len())

	page, ok := store.Page("WIKIPEDIA", "h1")
	require.True(t, ok)
	require.Equal(t, "u2", page.URL)
	require.Equal(t, queue.DefaultLang, page.Lang)
}
