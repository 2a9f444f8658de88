package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
	"github.com/yamelab/medref/internal/storage/memory"
)

func TestPlanExpandsSeeds(t *testing.T) {
	seeds := memory.NewSeedStore(
		[]queue.CategorySeed{
			{Source: "WIKIPEDIA", Category: "고혈압", Priority: 3, Enabled: true},
			{Source: "WIKIPEDIA", Category: "당뇨병", Priority: 3, Enabled: true},
			{Source: "WIKIPEDIA", Category: "disabled", Priority: 1, Enabled: false},
		},
		[]queue.PageSeed{
			{Source: "AMC", URLTemplate: "https://amc.test/list?page={page}", FirstPage: 1, LastPage: 3, Priority: 7, Enabled: true},
		},
	)
	q := memory.NewQueueStore()

	planner := NewPlanner(seeds, q, zap.NewNop())
	inserted, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, inserted)

	items, err := q.Claim(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, "고혈압", items[0].URLOrTitle)

	var urls []string
	for _, item := range items {
		if item.Source == "AMC" {
			urls = append(urls, item.URLOrTitle)
		}
	}
	require.Contains(t, urls, "https://amc.test/list?page=2")
}

func TestPlanIsIdempotent(t *testing.T) {
	seeds := memory.NewSeedStore(
		[]queue.CategorySeed{{Source: "WIKIPEDIA", Category: "고혈압", Priority: 3, Enabled: true}},
		nil,
	)
	q := memory.NewQueueStore()
	planner := NewPlanner(seeds, q, zap.NewNop())

	first, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.Zero(t, second)
}
