package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchFake(quality float64, results ...SearchResult) *fakePlugin {
	f := newFake("search")
	f.quality = quality
	f.results = results
	return f
}

func TestSearchRouterOrdersByQualityThenScore(t *testing.T) {
	concordance := searchFake(0.9,
		SearchResult{Reference: "John 3:16", Text: "For God so loved", Score: 0.2},
		SearchResult{Reference: "1 John 4:8", Text: "God is love", Score: 0.7},
	)
	fuzzy := searchFake(0.4,
		SearchResult{Reference: "Romans 5:8", Text: "God commendeth his love", Score: 0.99},
	)
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Concordance": concordance, "Fuzzy": fuzzy})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Concordance"))
	require.NoError(t, m.Load(ctx, "Fuzzy"))

	r := NewSearchRouter(m)
	defer r.Close()

	results, err := r.Search(ctx, "love", "KJV")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "1 John 4:8", results[0].Reference)
	assert.Equal(t, "John 3:16", results[1].Reference)
	assert.Equal(t, "Romans 5:8", results[2].Reference)
	assert.Equal(t, "Concordance", results[0].Plugin)
	assert.Equal(t, 0.9, results[0].Quality)
	assert.Equal(t, "Fuzzy", results[2].Plugin)
	assert.Equal(t, []string{"Concordance", "Fuzzy"}, m.ListByKind(KindSearch))
}

func TestSearchRouterCaches(t *testing.T) {
	f := searchFake(1, SearchResult{Reference: "Psalm 23:1", Text: "The LORD is my shepherd"})
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Psalms": f})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Psalms"))

	r := NewSearchRouter(m)
	defer r.Close()

	first, err := r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	first[0].Text = "mutated by caller"

	second, err := r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	assert.Equal(t, "The LORD is my shepherd", second[0].Text)
	assert.Equal(t, 1, f.Searches())

	_, err = r.Search(ctx, "shepherd", "ESV")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Searches())

	r.Invalidate()
	_, err = r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	assert.Equal(t, 3, f.Searches())
}

func TestSearchRouterSkipsCacheOnFailure(t *testing.T) {
	f := searchFake(1, SearchResult{Reference: "Psalm 23:1", Text: "The LORD is my shepherd"})
	f.onSearch = func(call int) {
		if call == 1 {
			panic("index not ready")
		}
	}
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Psalms": f})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Psalms"))

	r := NewSearchRouter(m)
	defer r.Close()

	first, err := r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	assert.Empty(t, first)
	state, _ := m.State("Psalms")
	assert.Equal(t, StateActive, state)

	second, err := r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, f.Searches())

	_, err = r.Search(ctx, "shepherd", "KJV")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Searches())
}

func TestSearchRouterDropsResultsInvalidatedMidQuery(t *testing.T) {
	f := searchFake(1, SearchResult{Reference: "Genesis 1:1", Text: "In the beginning"})
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Torah": f})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Torah"))

	r := NewSearchRouter(m)
	defer r.Close()
	f.onSearch = func(call int) {
		if call == 1 {
			r.Invalidate()
		}
	}

	results, err := r.Search(ctx, "beginning", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = r.Search(ctx, "beginning", "")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Searches())
}

func TestSearchRouterInvalidatesOnLifecycle(t *testing.T) {
	f := searchFake(1, SearchResult{Reference: "Genesis 1:1", Text: "In the beginning"})
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Torah": f})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Torah"))

	r := NewSearchRouter(m)
	defer r.Close()

	results, err := r.Search(ctx, "beginning", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	require.NoError(t, m.Unload(ctx, "Torah"))
	results, err = r.Search(ctx, "beginning", "")
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, m.Load(ctx, "Torah"))
	results, err = r.Search(ctx, "beginning", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchRouterExpiry(t *testing.T) {
	f := searchFake(1, SearchResult{Reference: "Mark 1:1"})
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Gospels": f})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, "Gospels"))

	r := NewSearchRouter(m, WithSearchCache(8, 20*time.Millisecond), WithSearchFanOut(1))
	defer r.Close()

	_, err := r.Search(ctx, "gospel", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := r.Search(ctx, "gospel", "")
		return err == nil && f.Searches() > 1
	}, time.Second, 10*time.Millisecond)
}

func TestSearchRouterCancelled(t *testing.T) {
	m := staticManager(t, ManagerConfig{}, map[string]*fakePlugin{"Gospels": searchFake(1, SearchResult{Reference: "Mark 1:1"})})
	require.NoError(t, m.Load(context.Background(), "Gospels"))

	r := NewSearchRouter(m)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Search(ctx, "gospel", "")
	assert.ErrorIs(t, err, context.Canceled)
}
