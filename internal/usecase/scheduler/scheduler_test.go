package scheduler

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

func makeFund(name string) *domain.Fund {
	return &domain.Fund{ID: uuid.New(), Name: name, IsActive: true}
}

// sharesHolding is an open holding of `holder` in the shares of `held`.
func sharesHolding(holder, held *domain.Fund) *domain.Holding {
	return &domain.Holding{
		ID:            uuid.New(),
		FundID:        holder.ID,
		Asset:         domain.FundSharesAsset(held.ID),
		BookingPeriod: "202401",
	}
}

func names(funds []*domain.Fund) []string {
	out := make([]string, len(funds))
	for i, f := range funds {
		out[i] = f.Name
	}
	return out
}

func TestOrder_NoDependencies(t *testing.T) {
	a, b := makeFund("Alpha"), makeFund("Beta")

	result, err := Order([]*domain.Fund{b, a}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, names(result.Ordered))
	// Independent funds land in one concurrent batch
	require.Len(t, result.Batches, 1)
	assert.Len(t, result.Batches[0], 2)
	assert.Empty(t, result.Cyclic)
}

func TestOrder_DependenciesFirst(t *testing.T) {
	base := makeFund("Base")
	feeder := makeFund("Feeder")
	top := makeFund("Top")

	// Top holds Feeder shares, Feeder holds Base shares: Base closes first.
	holdings := []*domain.Holding{
		sharesHolding(top, feeder),
		sharesHolding(feeder, base),
	}

	result, err := Order([]*domain.Fund{top, feeder, base}, holdings)

	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Feeder", "Top"}, names(result.Ordered))
	require.Len(t, result.Batches, 3)
	assert.Equal(t, "Base", result.Batches[0][0].Name)
	assert.Equal(t, "Feeder", result.Batches[1][0].Name)
	assert.Equal(t, "Top", result.Batches[2][0].Name)
}

func TestOrder_IndependentFundsShareABatch(t *testing.T) {
	base := makeFund("Base")
	left := makeFund("Left")
	right := makeFund("Right")

	holdings := []*domain.Holding{
		sharesHolding(left, base),
		sharesHolding(right, base),
	}

	result, err := Order([]*domain.Fund{left, right, base}, holdings)

	require.NoError(t, err)
	require.Len(t, result.Batches, 2)
	assert.Equal(t, []string{"Base"}, names(result.Batches[0]))
	// Left and Right only depend on Base, not on each other
	assert.Equal(t, []string{"Left", "Right"}, names(result.Batches[1]))
}

func TestOrder_CycleFailsClosed(t *testing.T) {
	a := makeFund("Alpha")
	b := makeFund("Beta")
	solo := makeFund("Solo")

	// Alpha and Beta hold each other's shares
	holdings := []*domain.Holding{
		sharesHolding(a, b),
		sharesHolding(b, a),
	}

	result, err := Order([]*domain.Fund{a, b, solo}, holdings)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDependencyCycleDetected))

	var cycleErr *domain.DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, cycleErr.FundIDs)

	// The acyclic remainder is still ordered
	assert.Equal(t, []string{"Solo"}, names(result.Ordered))
	assert.Equal(t, []string{"Alpha", "Beta"}, names(result.Cyclic))
}

func TestOrder_IgnoresIrrelevantHoldings(t *testing.T) {
	a := makeFund("Alpha")
	outsider := makeFund("Outsider")

	selfHolding := sharesHolding(a, a)
	outsideHolding := sharesHolding(a, outsider)
	cryptoHolding := &domain.Holding{
		ID: uuid.New(), FundID: a.ID, Asset: domain.CryptoAsset("BTC"), BookingPeriod: "202401",
	}

	// Self-references, funds outside the active set, and non-share holdings
	// do not create edges.
	result, err := Order([]*domain.Fund{a}, []*domain.Holding{selfHolding, outsideHolding, cryptoHolding})

	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, names(result.Ordered))
	assert.Empty(t, result.Cyclic)
}
