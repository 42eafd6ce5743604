package semantic

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/paninifs/panini/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier(t *testing.T) {
	assert.True(t, TierPublic < TierShared)
	assert.True(t, TierShared < TierPrivate)
	assert.True(t, TierPrivate < TierTransactional)

	for _, tier := range []Tier{TierPublic, TierShared, TierPrivate, TierTransactional, TierSystem} {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}
	_, err := ParseTier("secret")
	assert.True(t, errors.Is(err, ErrUnknownTier))

	buf, err := json.Marshal(Assertion{Subject: "/a", Predicate: "p", Tier: TierPrivate})
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"tier":"private"`)

	var back Assertion
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, TierPrivate, back.Tier)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.RecordAssertion(ctx, Assertion{Subject: "/doc.txt", Predicate: "author", Object: "ann", Tier: TierShared, At: t0.Add(time.Second)}))
	require.NoError(t, m.RecordAssertion(ctx, Assertion{Subject: "/doc.txt", Predicate: PredicateKind, Object: "file", Tier: TierSystem, At: t0}))
	require.NoError(t, m.RecordAssertion(ctx, Assertion{Subject: "/other", Predicate: PredicateKind, Object: "dir", Tier: TierSystem}))

	found, err := m.QueryAssertions(ctx, "/doc.txt")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, PredicateKind, found[0].Predicate)
	assert.Equal(t, "author", found[1].Predicate)
	assert.NotEmpty(t, found[0].ID)

	found, err = m.QueryAssertions(ctx, "/missing")
	require.NoError(t, err)
	assert.Empty(t, found)

	err = m.RecordAssertion(ctx, Assertion{Predicate: "p"})
	assert.True(t, errors.Is(err, ErrInvalidAssertion))
	err = m.RecordAssertion(ctx, Assertion{Subject: "s"})
	assert.True(t, errors.Is(err, ErrInvalidAssertion))
	err = m.RecordAssertion(ctx, Assertion{Subject: "s", Predicate: "p", Tier: Tier(42)})
	assert.True(t, errors.Is(err, ErrInvalidAssertion))
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.RecordAssertion(ctx, Assertion{Subject: "/s", Predicate: "p", Tier: TierPublic})
				_, _ = m.QueryAssertions(ctx, "/s")
			}
		}()
	}
	wg.Wait()

	found, err := m.QueryAssertions(ctx, "/s")
	require.NoError(t, err)
	assert.Len(t, found, 1000)
}

func TestDiscard(t *testing.T) {
	require.NoError(t, Discard.RecordAssertion(context.Background(), Assertion{}))
	found, err := Discard.QueryAssertions(context.Background(), "/x")
	require.NoError(t, err)
	assert.Empty(t, found)
}
