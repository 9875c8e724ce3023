// Package distribution provides pure, side-effect-free read projections over
// a set of holdings: per-holding valuations and aggregates grouped by risk
// layer or category, for dashboards and for the close-time layer-alert
// check. Prices are attached from a caller-supplied snapshot; ledger state
// is never mutated.
package distribution

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// PriceSet is a snapshot of latest-known prices keyed by asset key.
type PriceSet map[string]domain.AssetPrice

// CategoryResolver maps an asset to its category, mirroring the layer
// assignment strategy: an injected pure function, not a lookup against
// mutable state. The second return is false for uncategorized assets.
type CategoryResolver func(asset domain.AssetRef) (uuid.UUID, bool)

// HoldingValuation is one holding with its attached price and its share of
// the fund total.
type HoldingValuation struct {
	Holding    *domain.Holding
	USDValue   decimal.Decimal
	BTCValue   decimal.Decimal
	Percentage decimal.Decimal // of the valued fund total (0-100)
}

// Aggregate sums a group of holding valuations.
type Aggregate struct {
	Count      int
	USDValue   decimal.Decimal
	BTCValue   decimal.Decimal
	Percentage decimal.Decimal
}

// LayerAggregate is an aggregate grouped by layer index.
type LayerAggregate struct {
	LayerIndex int
	Aggregate
}

// CategoryAggregate is an aggregate grouped by category id. Holdings whose
// asset resolves to no category land in a zero-id group.
type CategoryAggregate struct {
	CategoryID uuid.UUID
	Aggregate
}

// LayerAlert reports a layer whose current allocation sits outside the
// configured alert range.
type LayerAlert struct {
	LayerIndex        int
	LayerName         string
	CurrentPercentage decimal.Decimal
	AlertRangeLow     decimal.Decimal
	AlertRangeHigh    decimal.Decimal
}

// relevant filters out holdings with neither a balance nor any recorded
// activity: they stay in the ledger but drop out of distribution reporting.
func relevant(holdings []*domain.Holding) []*domain.Holding {
	out := make([]*domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.EndBalance.IsZero() && h.StartBalance.IsZero() {
			continue
		}
		out = append(out, h)
	}
	return out
}

func value(h *domain.Holding, prices PriceSet) (usd, btc decimal.Decimal) {
	balance := h.EndBalance
	if p, ok := prices[h.Asset.Key()]; ok {
		return balance.Mul(p.USDPrice), balance.Mul(p.BTCPrice)
	}
	// Fall back to the prices frozen on the holding at the last recompute.
	return h.EndValueUSD(), h.EndValueBTC()
}

// CalcHoldingDistribution values each relevant holding and computes its
// share of the fund total, ordered by descending USD value.
func CalcHoldingDistribution(holdings []*domain.Holding, prices PriceSet) []HoldingValuation {
	kept := relevant(holdings)

	total := decimal.Zero
	valuations := make([]HoldingValuation, 0, len(kept))
	for _, h := range kept {
		usd, btc := value(h, prices)
		valuations = append(valuations, HoldingValuation{Holding: h, USDValue: usd, BTCValue: btc})
		total = total.Add(usd)
	}

	for i := range valuations {
		if total.IsPositive() {
			valuations[i].Percentage = valuations[i].USDValue.Div(total).Mul(decimal.NewFromInt(100))
		}
	}

	sort.SliceStable(valuations, func(i, j int) bool {
		return valuations[i].USDValue.GreaterThan(valuations[j].USDValue)
	})
	return valuations
}

// CalcLayerDistribution aggregates the holding distribution by layer index,
// ordered by ascending index.
func CalcLayerDistribution(holdings []*domain.Holding, prices PriceSet) []LayerAggregate {
	byLayer := make(map[int]*LayerAggregate)
	for _, v := range CalcHoldingDistribution(holdings, prices) {
		agg, ok := byLayer[v.Holding.LayerIndex]
		if !ok {
			agg = &LayerAggregate{LayerIndex: v.Holding.LayerIndex}
			byLayer[v.Holding.LayerIndex] = agg
		}
		agg.Count++
		agg.USDValue = agg.USDValue.Add(v.USDValue)
		agg.BTCValue = agg.BTCValue.Add(v.BTCValue)
		agg.Percentage = agg.Percentage.Add(v.Percentage)
	}

	out := make([]LayerAggregate, 0, len(byLayer))
	for _, agg := range byLayer {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LayerIndex < out[j].LayerIndex })
	return out
}

// CalcCategoryDistribution aggregates the holding distribution by category,
// ordered by descending USD value.
func CalcCategoryDistribution(holdings []*domain.Holding, prices PriceSet, resolve CategoryResolver) []CategoryAggregate {
	byCategory := make(map[uuid.UUID]*CategoryAggregate)
	for _, v := range CalcHoldingDistribution(holdings, prices) {
		categoryID := uuid.Nil
		if resolve != nil {
			if id, ok := resolve(v.Holding.Asset); ok {
				categoryID = id
			}
		}
		agg, ok := byCategory[categoryID]
		if !ok {
			agg = &CategoryAggregate{CategoryID: categoryID}
			byCategory[categoryID] = agg
		}
		agg.Count++
		agg.USDValue = agg.USDValue.Add(v.USDValue)
		agg.BTCValue = agg.BTCValue.Add(v.BTCValue)
		agg.Percentage = agg.Percentage.Add(v.Percentage)
	}

	out := make([]CategoryAggregate, 0, len(byCategory))
	for _, agg := range byCategory {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].USDValue.GreaterThan(out[j].USDValue) })
	return out
}

// CheckLayerAlerts compares a layer distribution against the fund's alert
// ranges and reports every configured layer sitting outside its range.
func CheckLayerAlerts(layers []domain.FundLayer, dist []LayerAggregate) []LayerAlert {
	current := make(map[int]decimal.Decimal, len(dist))
	for _, agg := range dist {
		current[agg.LayerIndex] = agg.Percentage
	}

	var alerts []LayerAlert
	for _, layer := range layers {
		pct := current[layer.Index]
		if pct.LessThan(layer.AlertRangeLow) || pct.GreaterThan(layer.AlertRangeHigh) {
			alerts = append(alerts, LayerAlert{
				LayerIndex:        layer.Index,
				LayerName:         layer.Name,
				CurrentPercentage: pct,
				AlertRangeLow:     layer.AlertRangeLow,
				AlertRangeHigh:    layer.AlertRangeHigh,
			})
		}
	}
	return alerts
}
