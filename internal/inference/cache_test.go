package inference_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/inference"
	"copilot-salud-backend/internal/model"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Cuántos HOSPITALES hay", "cuántos hospitales hay"},
		{"collapses whitespace", "  cuántos   hospitales\thay ", "cuántos hospitales hay"},
		{"already normalized", "población por municipio", "población por municipio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, inference.NormalizeQuery(tt.input))
		})
	}
}

func TestResultCache_KeyBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	cache := inference.NewResultCache(inference.WithCacheClock(func() time.Time { return now }))

	base := cache.Key("admin", "cuántos hospitales hay")

	// Same hour, trivially different phrasing: same key.
	assert.Equal(t, base, cache.Key("admin", "  Cuántos   hospitales HAY "))

	// Different role or different query: different key.
	assert.NotEqual(t, base, cache.Key("invitado", "cuántos hospitales hay"))
	assert.NotEqual(t, base, cache.Key("admin", "cuántas camas hay"))

	// Next hour bucket: different key.
	now = now.Add(time.Hour)
	assert.NotEqual(t, base, cache.Key("admin", "cuántos hospitales hay"))
}

func TestResultCache_GetPut(t *testing.T) {
	cache := inference.NewResultCache()
	key := cache.Key("analista", "ratio de médicos por distrito")

	_, ok := cache.Get(key)
	require.False(t, ok)

	cache.Put(key, model.AnalysisResult{AnalysisType: "equity", MainInsight: "ratio desigual"})

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, "equity", got.AnalysisType)

	hits, misses, entries := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, entries)
}
