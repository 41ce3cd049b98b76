package overlay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(overlays []TextOverlay) []int {
	out := make([]int, 0, len(overlays))
	for _, o := range overlays {
		out = append(out, o.ID)
	}
	return out
}

func TestAddAssignsMaxPlusOne(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 1, s.Add(Default()), "first id on an empty store")
	assert.Equal(t, 2, s.Add(Default()))

	s.Remove(1)
	assert.Equal(t, 3, s.Add(Default()), "ids follow the max, not the count")

	s.Remove(3)
	assert.Equal(t, 3, s.Add(Default()), "a removed max id can be reused")
	assert.Equal(t, []int{2, 3}, ids(s.List()))
}

func TestAddSelectsNewOverlay(t *testing.T) {
	s := NewCampaignStore()
	require.Equal(t, 1, s.SelectedID())

	id := s.Add(Default())
	assert.Equal(t, id, s.SelectedID())

	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "New Text", got.Text)
}

func TestCampaignScenario(t *testing.T) {
	s := NewCampaignStore()
	first, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "BLACK FRIDAY 28 NËNTORI", first.Text)
	assert.Equal(t, 50.0, first.X)
	assert.Equal(t, 20.0, first.Y)

	second, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, 80.0, second.Y)

	id := s.Add(Default())
	assert.Equal(t, 3, id)
	assert.Equal(t, []int{1, 2, 3}, ids(s.List()))
	assert.Equal(t, 3, s.SelectedID())
}

func TestRemoveThenUpdateIsNoop(t *testing.T) {
	s := NewCampaignStore()
	s.Add(Default())
	s.Remove(2)
	require.Equal(t, []int{1, 3}, ids(s.List()))

	before := s.Snapshot()
	assert.False(t, s.SetText(2, "ghost"))
	assert.Equal(t, before, s.Snapshot())
}

func TestRemoveSelectedClearsSelection(t *testing.T) {
	s := NewCampaignStore()
	s.Select(2)
	s.Remove(2)
	assert.Equal(t, None, s.SelectedID())

	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestRemoveUnselectedKeepsSelection(t *testing.T) {
	s := NewCampaignStore()
	s.Select(1)
	s.Remove(2)
	assert.Equal(t, 1, s.SelectedID())

	s.Remove(42)
	assert.Equal(t, 1, s.SelectedID())
	assert.Equal(t, []int{1}, ids(s.List()))
}

func TestUpdateUnknownLeavesStoreUnchanged(t *testing.T) {
	s := NewCampaignStore()
	before := s.Snapshot()

	text := "changed"
	size := 99.0
	found := s.Update(7, Patch{Text: &text, FontSize: &size})

	assert.False(t, found)
	assert.Equal(t, before, s.Snapshot())
}

func TestUpdateMergesOnlyGivenFields(t *testing.T) {
	s := NewCampaignStore()
	color := "#00FF00"
	require.True(t, s.Update(2, Patch{Color: &color}))

	got, _ := s.Get(2)
	want := Campaign()[1]
	want.Color = "#00FF00"
	assert.Equal(t, want, got)
}

func TestSettersClampRanges(t *testing.T) {
	s := NewCampaignStore()

	s.SetPosition(1, -5, 140)
	s.SetFontSize(1, 4)
	got, _ := s.Get(1)
	assert.Equal(t, 0.0, got.X)
	assert.Equal(t, 100.0, got.Y)
	assert.Equal(t, MinFontSize, got.FontSize)

	s.SetFontSize(1, 500)
	got, _ = s.Get(1)
	assert.Equal(t, MaxFontSize, got.FontSize)
}

func TestSettersRejectNonFiniteNumbers(t *testing.T) {
	s := NewCampaignStore()

	s.SetPosition(1, math.NaN(), math.NaN())
	s.SetFontSize(1, math.NaN())
	got, _ := s.Get(1)
	assert.Equal(t, MinPosition, got.X)
	assert.Equal(t, MinPosition, got.Y)
	assert.Equal(t, MinFontSize, got.FontSize)

	s.SetX(1, math.Inf(1))
	s.SetY(1, math.Inf(-1))
	s.SetFontSize(1, math.Inf(1))
	got, _ = s.Get(1)
	assert.Equal(t, MaxPosition, got.X)
	assert.Equal(t, MinPosition, got.Y)
	assert.Equal(t, MaxFontSize, got.FontSize)

	id := s.Add(TextOverlay{Text: "nan", X: math.NaN(), Y: math.Inf(1), FontSize: math.NaN()})
	got, _ = s.Get(id)
	assert.Equal(t, MinPosition, got.X)
	assert.Equal(t, MaxPosition, got.Y)
	assert.Equal(t, MinFontSize, got.FontSize)
}

func TestFieldSetters(t *testing.T) {
	s := NewStore()
	id := s.Add(Default())

	assert.True(t, s.SetText(id, "line one\nline two"))
	assert.True(t, s.SetX(id, 10))
	assert.True(t, s.SetY(id, 90))
	assert.True(t, s.SetColor(id, "gold"))
	assert.True(t, s.SetFontWeight(id, WeightBold))
	assert.True(t, s.SetFontFamily(id, FamilyImpact))

	got, _ := s.Get(id)
	assert.Equal(t, TextOverlay{
		ID:         id,
		Text:       "line one\nline two",
		X:          10,
		Y:          90,
		FontSize:   32,
		Color:      "gold",
		FontWeight: WeightBold,
		FontFamily: FamilyImpact,
	}, got)
}

func TestSelectUnknownClearsSelection(t *testing.T) {
	s := NewCampaignStore()
	s.Select(99)
	assert.Equal(t, None, s.SelectedID())

	s.Select(2)
	assert.Equal(t, 2, s.SelectedID())
	s.Select(None)
	assert.Equal(t, None, s.SelectedID())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewCampaignStore()
	snap := s.Snapshot()
	snap.Overlays[0].Text = "mutated"

	got, _ := s.Get(1)
	assert.Equal(t, "BLACK FRIDAY 28 NËNTORI", got.Text)
}

func TestSubscribeNotifiesEffectiveChanges(t *testing.T) {
	s := NewCampaignStore()

	var seen []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) {
		seen = append(seen, snap)
	})

	s.Add(Default())
	s.Update(99, Patch{})
	s.Remove(99)
	s.Select(3)
	s.SetText(1, "hello")
	require.Len(t, seen, 2, "misses and no-op selects do not notify")
	assert.Equal(t, 3, seen[0].Selected)
	assert.Equal(t, "hello", seen[1].Overlays[0].Text)

	cancel()
	s.Remove(1)
	assert.Len(t, seen, 2)
}

func TestNewStoreDropsDuplicateSeeds(t *testing.T) {
	s := NewStore(
		TextOverlay{ID: 4, Text: "a"},
		TextOverlay{ID: 4, Text: "dup"},
	)
	require.Equal(t, []int{4}, ids(s.List()))

	got, _ := s.Get(4)
	assert.Equal(t, "a", got.Text)
	assert.Equal(t, WeightNormal, got.FontWeight)
	assert.Equal(t, FamilyArial, got.FontFamily)
	assert.Equal(t, 5, s.Add(Default()))
}

func TestNewStoreNumbersSeedsWithoutID(t *testing.T) {
	s := NewStore(
		TextOverlay{Text: "first"},
		TextOverlay{ID: 3, Text: "three"},
		TextOverlay{ID: -2, Text: "negative"},
	)
	require.Equal(t, []int{3, 4, 5}, ids(s.List()))

	got, ok := s.Get(4)
	require.True(t, ok)
	assert.Equal(t, "first", got.Text)
	got, _ = s.Get(5)
	assert.Equal(t, "negative", got.Text)
	assert.Zero(t, s.SelectedID())

	s = NewStore(TextOverlay{Text: "a"}, TextOverlay{Text: "b"})
	assert.Equal(t, []int{1, 2}, ids(s.List()))
}
