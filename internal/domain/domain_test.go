package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, ts string, price int64) *PriceEntry {
	return &PriceEntry{ID: id, Timestamp: MustPriceDate(ts), Price: decimal.NewFromInt(price)}
}

func TestParsePriceDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "calendar date", in: "2024-01-05", want: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", in: "2024-01-05T10:30:00+02:00", want: time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC)},
		{name: "no zone", in: "2024-01-05T10:30:00", want: time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "next tuesday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParsePriceDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d.Time()), "got %v", d.Time())
			assert.Equal(t, tt.in, d.String())
		})
	}
}

func TestPriceDateKeepsRawText(t *testing.T) {
	var got struct {
		Date PriceDate `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-01"}`), &got))

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-01"}`, string(out))
}

func TestPriceDateUnmarshalRejectsNonString(t *testing.T) {
	var d PriceDate
	err := json.Unmarshal([]byte(`20240101`), &d)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSortKeyOrdersChronologically(t *testing.T) {
	earlier := MustPriceDate("2024-01-03")
	later := MustPriceDate("2024-01-03T00:00:01Z")
	assert.Less(t, earlier.SortKey(), later.SortKey())
}

func TestSortEntries(t *testing.T) {
	entries := []*PriceEntry{
		entry("0000000000000000000000a1", "2024-01-01", 100),
		entry("0000000000000000000000a3", "2024-01-05", 120),
		entry("0000000000000000000000a2", "2024-01-03", 110),
	}
	SortEntries(entries)
	assert.Equal(t, "2024-01-05", entries[0].Timestamp.String())
	assert.Equal(t, "2024-01-03", entries[1].Timestamp.String())
	assert.Equal(t, "2024-01-01", entries[2].Timestamp.String())
}

func TestLatestEntryTieBreaksOnID(t *testing.T) {
	older := entry("0000000000000000000000b1", "2024-02-01", 50)
	newer := entry("0000000000000000000000b2", "2024-02-01", 60)

	assert.Same(t, newer, LatestEntry([]*PriceEntry{older, newer}))
	assert.Same(t, newer, LatestEntry([]*PriceEntry{newer, older}))
}

func TestLatestEntryMixedRepresentations(t *testing.T) {
	date := entry("0000000000000000000000c1", "2024-03-02", 10)
	stamp := entry("0000000000000000000000c0", "2024-03-01T23:00:00Z", 20)
	assert.Same(t, date, LatestEntry([]*PriceEntry{stamp, date}))
}

func TestLatestEntryEmpty(t *testing.T) {
	assert.Nil(t, LatestEntry(nil))
}

func TestParseID(t *testing.T) {
	id := NewID()
	got, err := ParseID(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	upper, err := ParseID("65A1B2C3D4E5F60718293A4B")
	require.NoError(t, err)
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", upper)

	_, err = ParseID("not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNewIDIncreases(t *testing.T) {
	first := NewID()
	second := NewID()
	assert.Less(t, first, second)
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, TierPremium, (&User{Tier: TierPremium}).EffectiveTier(now))
	assert.Equal(t, TierPremium, (&User{Tier: TierPremium, TierExpiresAt: &future}).EffectiveTier(now))
	assert.Equal(t, TierFree, (&User{Tier: TierPremium, TierExpiresAt: &past}).EffectiveTier(now))
	assert.Equal(t, TierFree, (&User{}).EffectiveTier(now))
}

func TestTierHistoryLimit(t *testing.T) {
	assert.Equal(t, 10, TierFree.HistoryLimit())
	assert.Equal(t, 100, TierPremium.HistoryLimit())
}
