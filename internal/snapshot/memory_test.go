package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/snapshot"
)

var epoch = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func sampleSnapshot(id, campaign string) combat.Snapshot {
	initiative := 14
	active := 0
	return combat.Snapshot{
		ID:           id,
		CampaignID:   campaign,
		Name:         "Goblin ambush",
		Status:       combat.StatusActive,
		CurrentRound: 2,
		ActiveIndex:  &active,
		Participants: []combat.Participant{
			{ID: "p1", Name: "Fighter", CurrentHP: 30, MaxHP: 44, ArmorClass: 18, Initiative: &initiative, Seq: 0},
			{ID: "p2", Name: "Goblin", CurrentHP: 7, MaxHP: 7, ArmorClass: 15, Seq: 1},
		},
	}
}

func TestMemoryRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := snapshot.NewMemoryRepository(clock.NewManual(epoch))
	snap := sampleSnapshot("c1", "k1")

	require.NoError(t, repo.Save(ctx, snap))
	got, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, snap.Participants[0].Name, got.Participants[0].Name)
	assert.Equal(t, 14, *got.Participants[0].Initiative)
	assert.Equal(t, 2, got.CurrentRound)

	// The stored copy is independent of the caller's.
	snap.Participants[0].CurrentHP = 1
	got, _ = repo.Load(ctx, "c1")
	assert.Equal(t, 30, got.Participants[0].CurrentHP)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := snapshot.NewMemoryRepository(nil)
	_, err := repo.Load(ctx, "missing")
	assert.ErrorIs(t, err, snapshot.ErrCombatNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), snapshot.ErrCombatNotFound)
}

func TestMemoryRepository_ListByCampaign(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(epoch)
	repo := snapshot.NewMemoryRepository(clk)

	require.NoError(t, repo.Save(ctx, sampleSnapshot("old", "k1")))
	clk.Advance(time.Minute)
	require.NoError(t, repo.Save(ctx, sampleSnapshot("new", "k1")))
	require.NoError(t, repo.Save(ctx, sampleSnapshot("other", "k2")))

	list, err := repo.ListByCampaign(ctx, "k1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, epoch, list[1].UpdatedAt)
	assert.Equal(t, 2, list[0].CurrentRound)

	empty, err := repo.ListByCampaign(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := snapshot.NewMemoryRepository(nil)
	require.NoError(t, repo.Save(ctx, sampleSnapshot("c1", "k1")))
	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err := repo.Load(ctx, "c1")
	assert.ErrorIs(t, err, snapshot.ErrCombatNotFound)
}

func TestMemoryRepository_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := snapshot.NewMemoryRepository(nil)
	assert.ErrorIs(t, repo.Save(ctx, sampleSnapshot("c1", "k1")), context.Canceled)
	_, err := repo.Load(ctx, "c1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_RejectsEmptyID(t *testing.T) {
	repo := snapshot.NewMemoryRepository(nil)
	assert.Error(t, repo.Save(context.Background(), sampleSnapshot("", "k1")))
}
