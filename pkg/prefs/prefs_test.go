package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndSubscribe(t *testing.T) {
	s := NewStore(Default())
	assert.Equal(t, 0.5, s.Current().ConfidenceThreshold)

	var seen []Preferences
	cancel := s.Subscribe(func(p Preferences) { seen = append(seen, p) })

	require.NoError(t, s.Update(func(p *Preferences) { p.ConfidenceThreshold = 0.7 }))
	assert.Equal(t, 0.7, s.Current().ConfidenceThreshold)
	require.Len(t, seen, 1)

	cancel()
	require.NoError(t, s.Update(func(p *Preferences) { p.HapticsEnabled = false }))
	assert.Len(t, seen, 1)
	assert.False(t, s.Current().HapticsEnabled)
}

func TestStore_RejectsInvalid(t *testing.T) {
	s := NewStore(Default())
	tests := []Preferences{
		{ConfidenceThreshold: 1.5},
		{ConfidenceThreshold: -0.1},
		{ConfidenceThreshold: 0.5, MaxSummaryItems: -1},
	}
	for _, p := range tests {
		assert.Error(t, s.Set(p))
	}
	assert.Equal(t, Default(), s.Current())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(Default())
	p := s.Current()
	p.MaxSummaryItems = 99
	assert.Equal(t, 3, s.Current().MaxSummaryItems)
}

func TestStatic(t *testing.T) {
	var src Source = Static{ConfidenceThreshold: 0.2}
	assert.Equal(t, 0.2, src.Current().ConfidenceThreshold)
}
