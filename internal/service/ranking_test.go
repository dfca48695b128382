package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/bakutrack/internal/domain"
)

func slot(id string, rank int, itemID, reason string) *domain.Slot {
	return &domain.Slot{ID: id, Catalog: domain.CatalogBakugan, Rank: rank, ItemID: itemID, Reason: reason}
}

func TestPlanAssignment(t *testing.T) {
	t.Run("neither held creates", func(t *testing.T) {
		plan := PlanAssignment(nil, nil, domain.CatalogBakugan, "x", 3, "strong")
		assert.Equal(t, AssignCreated, plan.Kind)
		require.NotNil(t, plan.Create)
		assert.Empty(t, plan.Writes)
		assert.Equal(t, 3, plan.Create.Rank)
		assert.Equal(t, "x", plan.Create.ItemID)
		assert.Equal(t, "strong", plan.Create.Reason)
	})

	t.Run("same slot refreshes reason", func(t *testing.T) {
		held := slot("s1", 2, "x", "old")
		plan := PlanAssignment(held, held, domain.CatalogBakugan, "x", 2, "new")
		assert.Equal(t, AssignUpdated, plan.Kind)
		require.Len(t, plan.Writes, 1)
		assert.Equal(t, "new", plan.Target.Reason)
		assert.Equal(t, "old", held.Reason, "input must not be modified")
	})

	t.Run("same slot keeps reason when none given", func(t *testing.T) {
		held := slot("s1", 2, "x", "old")
		plan := PlanAssignment(held, held, domain.CatalogBakugan, "x", 2, "")
		assert.Equal(t, "old", plan.Target.Reason)
	})

	t.Run("both held swaps", func(t *testing.T) {
		atRank := slot("s1", 1, "y", "y-reason")
		ofItem := slot("s2", 4, "x", "x-reason")
		plan := PlanAssignment(atRank, ofItem, domain.CatalogBakugan, "x", 1, "")

		assert.Equal(t, AssignSwapped, plan.Kind)
		require.Len(t, plan.Writes, 2)
		assert.Equal(t, "s1", plan.Target.ID)
		assert.Equal(t, 1, plan.Target.Rank)
		assert.Equal(t, "x", plan.Target.ItemID)
		assert.Equal(t, "x-reason", plan.Target.Reason)

		require.NotNil(t, plan.Displaced)
		assert.Equal(t, "s2", plan.Displaced.ID)
		assert.Equal(t, 4, plan.Displaced.Rank)
		assert.Equal(t, "y", plan.Displaced.ItemID)
		assert.Equal(t, "y-reason", plan.Displaced.Reason)
		assert.Empty(t, plan.EvictedItemID)
	})

	t.Run("swap with new reason", func(t *testing.T) {
		plan := PlanAssignment(slot("s1", 1, "y", "a"), slot("s2", 4, "x", "b"), domain.CatalogBakugan, "x", 1, "c")
		assert.Equal(t, "c", plan.Target.Reason)
		assert.Equal(t, "a", plan.Displaced.Reason)
	})

	t.Run("rank held by other evicts it", func(t *testing.T) {
		plan := PlanAssignment(slot("s1", 5, "y", "y-reason"), nil, domain.CatalogBakugan, "x", 5, "")
		assert.Equal(t, AssignUpdated, plan.Kind)
		assert.Equal(t, "y", plan.EvictedItemID)
		assert.Equal(t, "x", plan.Target.ItemID)
		assert.Equal(t, "", plan.Target.Reason)
		assert.Nil(t, plan.Displaced)
	})

	t.Run("item held elsewhere moves in place", func(t *testing.T) {
		plan := PlanAssignment(nil, slot("s2", 4, "x", "keep"), domain.CatalogBakugan, "x", 2, "")
		assert.Equal(t, AssignUpdated, plan.Kind)
		require.Len(t, plan.Writes, 1)
		assert.Equal(t, "s2", plan.Target.ID)
		assert.Equal(t, 2, plan.Target.Rank)
		assert.Equal(t, "keep", plan.Target.Reason)
		assert.Empty(t, plan.EvictedItemID)
	})
}

// assertRanks checks the listing against a rank→item expectation and that no
// item holds two ranks.
func assertRanks(t *testing.T, env *testEnv, catalog domain.Catalog, want map[int]string) {
	t.Helper()
	listed, err := env.ranks.List(context.Background(), catalog)
	require.NoError(t, err)

	got := make(map[int]string, len(listed))
	seen := make(map[string]int, len(listed))
	for _, s := range listed {
		got[s.Rank] = s.ItemID
		seen[s.ItemID]++
	}
	assert.Equal(t, want, got)
	for itemID, n := range seen {
		assert.Equal(t, 1, n, "item %s holds %d ranks", itemID, n)
	}
}

func TestAssignCreatesSlot(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	item := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")

	out, err := env.ranks.Assign(ctx, domain.CatalogBakugan, item.ID, 3, "  fan favourite ")
	require.NoError(t, err)
	assert.Equal(t, AssignCreated, out.Kind)
	assert.Equal(t, 3, out.Slot.Rank)
	assert.Equal(t, "fan favourite", out.Slot.Reason)
	assert.NotEmpty(t, out.Slot.ID)

	assertRanks(t, env, domain.CatalogBakugan, map[int]string{3: item.ID})
}

func TestAssignSwapsRanks(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	b := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 1, "a")
	require.NoError(t, err)
	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 2, "b")
	require.NoError(t, err)

	out, err := env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, AssignSwapped, out.Kind)
	assert.Equal(t, b.ID, out.Slot.ItemID)
	require.NotNil(t, out.Displaced)
	assert.Equal(t, a.ID, out.Displaced.ItemID)
	assert.Equal(t, 2, out.Displaced.Rank)

	assertRanks(t, env, domain.CatalogBakugan, map[int]string{1: b.ID, 2: a.ID})

	listed, err := env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "b", listed[0].Reason)
	assert.Equal(t, "a", listed[1].Reason)
}

func TestAssignRepeatedIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	b := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 1, "")
	require.NoError(t, err)
	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 2, "")
	require.NoError(t, err)
	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 1, "top")
	require.NoError(t, err)

	before, err := env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)

	out, err := env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 1, "top")
	require.NoError(t, err)
	assert.Equal(t, AssignUpdated, out.Kind)

	after, err := env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Rank, after[i].Rank)
		assert.Equal(t, before[i].ItemID, after[i].ItemID)
		assert.Equal(t, before[i].Reason, after[i].Reason)
	}
}

// Taking an occupied rank drops the previous occupant from the list entirely.
// Nothing records where it was; this loses data.
func TestAssignOccupiedRankEvictsPreviousItem(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	b := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 5, "was here")
	require.NoError(t, err)

	out, err := env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 5, "replacement")
	require.NoError(t, err)
	assert.Equal(t, AssignUpdated, out.Kind)
	assert.Equal(t, a.ID, out.EvictedItemID)

	assertRanks(t, env, domain.CatalogBakugan, map[int]string{5: b.ID})
	held, err := env.repos.Slots.GetByItem(ctx, domain.CatalogBakugan, a.ID)
	require.NoError(t, err)
	assert.Nil(t, held)
}

func TestAssignMovesItemToFreeRank(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")

	first, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 4, "reason")
	require.NoError(t, err)

	out, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, AssignUpdated, out.Kind)
	assert.Equal(t, first.Slot.ID, out.Slot.ID)
	assert.Equal(t, "reason", out.Slot.Reason)

	assertRanks(t, env, domain.CatalogBakugan, map[int]string{2: a.ID})
}

func TestAssignRejectsRankOutOfRange(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	item := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")

	for _, rank := range []int{0, 6, -1} {
		_, err := env.ranks.Assign(context.Background(), domain.CatalogBakugan, item.ID, rank, "")
		assert.ErrorIs(t, err, domain.ErrValidation, "rank %d", rank)
	}
	assertRanks(t, env, domain.CatalogBakugan, map[int]string{})
}

func TestAssignUnknownItem(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, domain.NewID(), 1, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, "not-an-id", 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignItemFromOtherCatalog(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	tech := env.createItem(t, domain.CatalogBakuTech, "Gear", "20", "2024-01-01")

	_, err := env.ranks.Assign(context.Background(), domain.CatalogBakugan, tech.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogsRankIndependently(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	ball := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	tech := env.createItem(t, domain.CatalogBakuTech, "Gear", "20", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, ball.ID, 1, "")
	require.NoError(t, err)
	_, err = env.ranks.Assign(ctx, domain.CatalogBakuTech, tech.ID, 1, "")
	require.NoError(t, err)

	assertRanks(t, env, domain.CatalogBakugan, map[int]string{1: ball.ID})
	assertRanks(t, env, domain.CatalogBakuTech, map[int]string{1: tech.ID})
}

func TestReleaseLeavesGap(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	b := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")
	c := env.createItem(t, domain.CatalogBakugan, "Gorem", "80", "2024-01-01")

	for rank, item := range map[int]*domain.Item{1: a, 2: b, 3: c} {
		_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, item.ID, rank, "")
		require.NoError(t, err)
	}

	require.NoError(t, env.ranks.Release(ctx, domain.CatalogBakugan, 2))
	assertRanks(t, env, domain.CatalogBakugan, map[int]string{1: a.ID, 3: c.ID})
}

func TestReleaseEmptyRank(t *testing.T) {
	env := newTestEnv(t, 0, nil)

	err := env.ranks.Release(context.Background(), domain.CatalogBakugan, 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = env.ranks.Release(context.Background(), domain.CatalogBakugan, 9)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListJoinsItemsAndKeepsDanglingSlots(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()
	kept := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	gone := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, kept.ID, 1, "")
	require.NoError(t, err)
	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, gone.ID, 2, "")
	require.NoError(t, err)
	require.NoError(t, env.catalog.DeleteItem(ctx, domain.CatalogBakugan, gone.ID))

	listed, err := env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.NotNil(t, listed[0].Item)
	assert.Equal(t, []string{"Dragonoid"}, listed[0].Item.Names)
	assert.Equal(t, "100", listed[0].Item.CurrentPrice.String())

	assert.Equal(t, gone.ID, listed[1].ItemID)
	assert.Nil(t, listed[1].Item)
}

func TestListServesStaleUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	env := newTestEnv(t, 2*time.Minute, clock)
	ctx := context.Background()
	a := env.createItem(t, domain.CatalogBakugan, "Dragonoid", "100", "2024-01-01")
	b := env.createItem(t, domain.CatalogBakugan, "Tigrerra", "90", "2024-01-01")

	_, err := env.ranks.Assign(ctx, domain.CatalogBakugan, a.ID, 1, "")
	require.NoError(t, err)
	listed, err := env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = env.ranks.Assign(ctx, domain.CatalogBakugan, b.ID, 2, "")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	listed, err = env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	assert.Len(t, listed, 1, "writes do not invalidate the cache")

	clock.Advance(time.Minute)
	listed, err = env.ranks.List(ctx, domain.CatalogBakugan)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
