// Package scheduler orders funds that invest in other funds so that
// dependencies close before dependents: when fund A holds shares of fund B,
// A's valuation needs B's fresh period nav, so B must close first.
package scheduler

import (
	"sort"

	"github.com/google/uuid"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// Result is a dependency ordering of the active fund set.
// Ordered lists every acyclic fund, dependencies first. Batches groups the
// same funds into stages: funds within one stage have no dependency between
// them and may close concurrently. Cyclic holds the funds excluded from the
// ordering because their share holdings form a cycle.
type Result struct {
	Ordered []*domain.Fund
	Batches [][]*domain.Fund
	Cyclic  []*domain.Fund
}

// Order builds the invests-in graph from the open holdings and topologically
// sorts the funds. A cycle is a configuration error: the cyclic subset is
// reported through a DependencyCycleError while the acyclic funds still get
// a valid order, so one broken pair cannot stall the whole close batch.
func Order(funds []*domain.Fund, openHoldings []*domain.Holding) (*Result, error) {
	inSet := make(map[uuid.UUID]*domain.Fund, len(funds))
	for _, f := range funds {
		inSet[f.ID] = f
	}

	// dependsOn[A] = set of funds whose shares A holds.
	dependsOn := make(map[uuid.UUID]map[uuid.UUID]bool, len(funds))
	dependents := make(map[uuid.UUID][]uuid.UUID)
	for _, f := range funds {
		dependsOn[f.ID] = make(map[uuid.UUID]bool)
	}
	for _, h := range openHoldings {
		if h.Asset.Kind != domain.AssetKindFundShares || h.Asset.FundID == nil {
			continue
		}
		holder, ok := inSet[h.FundID]
		if !ok {
			continue
		}
		held := *h.Asset.FundID
		if _, ok := inSet[held]; !ok || held == holder.ID {
			continue
		}
		if !dependsOn[holder.ID][held] {
			dependsOn[holder.ID][held] = true
			dependents[held] = append(dependents[held], holder.ID)
		}
	}

	// Kahn's algorithm in stages: every fund whose dependencies are all
	// resolved forms the next batch. Funds within a batch are independent.
	remaining := make(map[uuid.UUID]int, len(funds))
	for id, deps := range dependsOn {
		remaining[id] = len(deps)
	}

	result := &Result{}
	resolved := make(map[uuid.UUID]bool, len(funds))
	for len(resolved) < len(funds) {
		var stage []*domain.Fund
		for _, f := range funds {
			if !resolved[f.ID] && remaining[f.ID] == 0 {
				stage = append(stage, f)
			}
		}
		if len(stage) == 0 {
			break // the rest is cyclic
		}

		sort.Slice(stage, func(i, j int) bool { return stage[i].Name < stage[j].Name })
		result.Batches = append(result.Batches, stage)
		for _, f := range stage {
			resolved[f.ID] = true
			result.Ordered = append(result.Ordered, f)
			for _, dependent := range dependents[f.ID] {
				remaining[dependent]--
			}
		}
	}

	if len(resolved) == len(funds) {
		return result, nil
	}

	cycleErr := &domain.DependencyCycleError{}
	for _, f := range funds {
		if !resolved[f.ID] {
			result.Cyclic = append(result.Cyclic, f)
			cycleErr.FundIDs = append(cycleErr.FundIDs, f.ID)
		}
	}
	return result, cycleErr
}
