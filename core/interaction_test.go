package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteraction_Normalize(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rating := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		in         Interaction
		wantWeight float64
		wantErr    bool
	}{
		{
			name:       "zero weight uses implicit view weight",
			in:         Interaction{UserID: "u1", ItemID: "i1", Type: InteractionView},
			wantWeight: 1,
		},
		{
			name:       "purchase implicit weight",
			in:         Interaction{UserID: "u1", ItemID: "i1", Type: InteractionPurchase},
			wantWeight: 4,
		},
		{
			name:       "explicit weight kept",
			in:         Interaction{UserID: "u1", ItemID: "i1", Type: InteractionLike, Weight: 2.5},
			wantWeight: 2.5,
		},
		{
			name:       "rating scales weight",
			in:         Interaction{UserID: "u1", ItemID: "i1", Type: InteractionLike, Rating: rating(2.5)},
			wantWeight: 1,
		},
		{
			name:    "negative weight rejected",
			in:      Interaction{UserID: "u1", ItemID: "i1", Type: InteractionView, Weight: -1},
			wantErr: true,
		},
		{
			name:    "NaN weight rejected",
			in:      Interaction{UserID: "u1", ItemID: "i1", Type: InteractionView, Weight: math.NaN()},
			wantErr: true,
		},
		{
			name:    "infinite weight rejected",
			in:      Interaction{UserID: "u1", ItemID: "i1", Type: InteractionView, Weight: math.Inf(1)},
			wantErr: true,
		},
		{
			name:    "unknown type rejected",
			in:      Interaction{UserID: "u1", ItemID: "i1", Type: "click"},
			wantErr: true,
		},
		{
			name:    "missing user rejected",
			in:      Interaction{ItemID: "i1", Type: InteractionView},
			wantErr: true,
		},
		{
			name:    "rating out of range rejected",
			in:      Interaction{UserID: "u1", ItemID: "i1", Type: InteractionView, Rating: rating(7)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize(now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantWeight, got.Weight, 1e-9)
			assert.Equal(t, now, got.Timestamp)
		})
	}
}

func TestInteraction_NormalizeKeepsTimestamp(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err := Interaction{UserID: "u", ItemID: "i", Type: InteractionShare, Timestamp: ts}.Normalize(time.Now())
	require.NoError(t, err)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, 3.0, got.Weight)
}
