package reference

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

func twoHeroes(t *testing.T) *Library {
	t.Helper()
	lib, err := New(map[string][][]float32{
		"Alpha": {{1, 0, 0}},
		"Beta":  {{0, 1, 0}},
	}, WithLogger(logger.Nop()))
	require.NoError(t, err)
	return lib
}

func TestBestMatch_UnitVectors(t *testing.T) {
	lib := twoHeroes(t)

	m, ok := lib.BestMatch([]float32{1, 0, 0}, 0.1)
	require.True(t, ok)
	assert.Equal(t, "Alpha", m.Name)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
}

func TestBestMatch_QueryIsNormalized(t *testing.T) {
	lib := twoHeroes(t)

	m, ok := lib.BestMatch([]float32{0, 5, 0}, 0.99)
	require.True(t, ok)
	assert.Equal(t, "Beta", m.Name)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
}

func TestBestMatch_BelowThreshold(t *testing.T) {
	lib := twoHeroes(t)

	_, ok := lib.BestMatch([]float32{0, 0, 1}, 0.1)
	assert.False(t, ok)

	m, ok := lib.BestMatch([]float32{1, 1, 0}, 0.5)
	require.True(t, ok)
	assert.Equal(t, "Alpha", m.Name, "ties go to the first name")
	assert.InDelta(t, math.Sqrt2/2, m.Score, 1e-6)
}

func TestBestMatch_InvalidQuery(t *testing.T) {
	lib := twoHeroes(t)

	_, ok := lib.BestMatch([]float32{1, 0}, 0)
	assert.False(t, ok, "dimension mismatch")
	_, ok = lib.BestMatch([]float32{0, 0, 0}, 0)
	assert.False(t, ok, "zero query")
	assert.Nil(t, lib.TopK([]float32{1}, 3))
}

func TestBestMatch_MultipleVectorsPerHero(t *testing.T) {
	lib, err := New(map[string][][]float32{
		"Alpha": {{1, 0, 0}, {0, 0, 1}},
		"Beta":  {{0, 1, 0}},
	}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	m, ok := lib.BestMatch([]float32{0, 0, 2}, 0.5)
	require.True(t, ok)
	assert.Equal(t, "Alpha", m.Name)
	assert.Equal(t, []EntryInfo{{Name: "Alpha", Vectors: 2}, {Name: "Beta", Vectors: 1}}, lib.Entries())
}

func TestNew_SkipsInvalidVectors(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	lib, err := New(map[string][][]float32{
		"Alpha": {{1, 0, 0}},
		"Bad":   {{nan, 0, 0}, {0, inf, 0}},
		"Empty": {{0, 0, 0}},
		"Short": {{1, 0}},
		"Mixed": {{nan, 1, 1}, {0, 1, 1}},
	}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", "Mixed"}, lib.Names())
	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, 3, lib.Dim())
}

func TestNew_NoUsableVectors(t *testing.T) {
	_, err := New(map[string][][]float32{"Bad": {{float32(math.NaN())}}}, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ErrNoReferences)

	_, err = New(nil, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ErrNoReferences)
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	in := map[string][][]float32{"Alpha": {{3, 4}}}
	lib, err := New(in, WithLogger(logger.Nop()))
	require.NoError(t, err)

	in["Alpha"][0][0] = -100
	m, ok := lib.BestMatch([]float32{3, 4}, 0.99)
	require.True(t, ok)
	assert.Equal(t, "Alpha", m.Name)
}

func TestTopK(t *testing.T) {
	lib, err := New(map[string][][]float32{
		"Alpha": {{1, 0, 0}},
		"Beta":  {{0.8, 0.6, 0}},
		"Gamma": {{0, 0, 1}},
	}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	top := lib.TopK([]float32{1, 0, 0}, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "Alpha", top[0].Name)
	assert.Equal(t, "Beta", top[1].Name)
	assert.InDelta(t, 0.8, top[1].Score, 1e-6)

	all := lib.TopK([]float32{1, 0, 0}, 10)
	assert.Len(t, all, 3)
	assert.Equal(t, "Gamma", all[2].Name)
	assert.Nil(t, lib.TopK([]float32{1, 0, 0}, 0))
}

func TestTemplatesAndEntries(t *testing.T) {
	lib, err := New(map[string][][]float32{"Alpha": {{1, 0}}},
		WithLogger(logger.Nop()),
		WithTemplates(Template{Name: "Gamma"}, Template{Name: "Alpha"}, Template{Name: "Alpha"}))
	require.NoError(t, err)

	tpls := lib.Templates()
	require.Len(t, tpls, 3)
	assert.Equal(t, "Alpha", tpls[0].Name)
	assert.Equal(t, "Gamma", tpls[2].Name)
	assert.Equal(t, []EntryInfo{
		{Name: "Alpha", Vectors: 1, Templates: 2},
		{Name: "Gamma", Templates: 1},
	}, lib.Entries())
}
