package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// --- funds ---

type fundRepo struct{ s *Store }

func (r fundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.funds[id]
	if !ok {
		return nil, fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
	}
	return cloneFund(f), nil
}

func (r fundRepo) ListActive(ctx context.Context) ([]*domain.Fund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Fund
	for _, f := range r.s.funds {
		if f.IsActive {
			out = append(out, cloneFund(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r fundRepo) Create(ctx context.Context, fund *domain.Fund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.funds[fund.ID]; ok {
		return fmt.Errorf("fund %s already exists", fund.ID)
	}
	r.s.funds[fund.ID] = cloneFund(fund)
	return nil
}

func (r fundRepo) UpdateAggregates(ctx context.Context, id uuid.UUID, totalValue, totalShares, shareValueHWM decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.funds[id]
	if !ok {
		return fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
	}
	f.TotalValue = totalValue
	f.TotalShares = totalShares
	f.ShareValueHWM = shareValueHWM
	return nil
}

// --- holdings ---

type holdingRepo struct{ s *Store }

func (r holdingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h, ok := r.s.holdings[id]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
	}
	return cloneHolding(h), nil
}

func (r holdingRepo) Create(ctx context.Context, holding *domain.Holding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.holdings[holding.ID]; ok {
		return fmt.Errorf("holding %s already exists", holding.ID)
	}
	r.s.holdings[holding.ID] = cloneHolding(holding)
	return nil
}

func (r holdingRepo) Update(ctx context.Context, holding *domain.Holding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.holdings[holding.ID]; !ok {
		return fmt.Errorf("holding %s: %w", holding.ID, domain.ErrNotFound)
	}
	r.s.holdings[holding.ID] = cloneHolding(holding)
	return nil
}

func (r holdingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.holdings[id]; !ok {
		return fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.holdings, id)
	return nil
}

func (r holdingRepo) ListByFundPeriod(ctx context.Context, fundID uuid.UUID, period domain.Period) ([]*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Holding
	for _, h := range r.s.holdings {
		if h.FundID == fundID && h.BookingPeriod == period {
			out = append(out, cloneHolding(h))
		}
	}
	sortHoldings(out)
	return out, nil
}

func (r holdingRepo) ListOpenByFund(ctx context.Context, fundID uuid.UUID) ([]*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Holding
	for _, h := range r.s.holdings {
		if h.FundID == fundID && h.IsOpen() {
			out = append(out, cloneHolding(h))
		}
	}
	sortHoldings(out)
	return out, nil
}

func (r holdingRepo) ListOpenByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string, period domain.Period) ([]*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Holding
	for _, h := range r.s.holdings {
		if h.FundID == fundID && h.IsOpen() && h.BookingPeriod == period && h.Asset.Key() == assetKey {
			out = append(out, cloneHolding(h))
		}
	}
	sortHoldings(out)
	return out, nil
}

func (r holdingRepo) GetLatestByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string) (*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *domain.Holding
	for _, h := range r.s.holdings {
		if h.FundID != fundID || h.Asset.Key() != assetKey {
			continue
		}
		if latest == nil || latest.BookingPeriod.Before(h.BookingPeriod) {
			latest = h
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("holding of %s for fund %s: %w", assetKey, fundID, domain.ErrNotFound)
	}
	return cloneHolding(latest), nil
}

func (r holdingRepo) LatestPeriod(ctx context.Context, fundID uuid.UUID) (domain.Period, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest domain.Period
	for _, h := range r.s.holdings {
		if h.FundID == fundID && latest.Before(h.BookingPeriod) {
			latest = h.BookingPeriod
		}
	}
	if latest == "" {
		return "", fmt.Errorf("fund %s: %w", fundID, domain.ErrNoPeriod)
	}
	return latest, nil
}

func (r holdingRepo) ListOpenAll(ctx context.Context) ([]*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Holding
	for _, h := range r.s.holdings {
		if h.IsOpen() {
			out = append(out, cloneHolding(h))
		}
	}
	sortHoldings(out)
	return out, nil
}

// --- transfers ---

type transferRepo struct{ s *Store }

func (r transferRepo) Create(ctx context.Context, transfer *domain.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transfers[transfer.ID]; ok {
		return fmt.Errorf("transfer %s already exists", transfer.ID)
	}
	r.s.transfers[transfer.ID] = cloneTransfer(transfer)
	return nil
}

func (r transferRepo) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*domain.Transfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Transfer
	for _, t := range r.s.transfers {
		if t.HoldingID == holdingID {
			out = append(out, cloneTransfer(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r transferRepo) ListByHoldingBetween(ctx context.Context, holdingID uuid.UUID, from, to time.Time) ([]*domain.Transfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Transfer
	for _, t := range r.s.transfers {
		if t.HoldingID != holdingID || t.DateTime.Before(from) || !t.DateTime.Before(to) {
			continue
		}
		out = append(out, cloneTransfer(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r transferRepo) CountByHolding(ctx context.Context, holdingID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, t := range r.s.transfers {
		if t.HoldingID == holdingID {
			count++
		}
	}
	return count, nil
}

// --- orders and trades ---

type tradeRepo struct{ s *Store }

func (r tradeRepo) ListFundedTradesBetween(ctx context.Context, fundID uuid.UUID, from, to time.Time) ([]*domain.FundedTrade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	fundingsByOrder := make(map[uuid.UUID]*domain.OrderFunding)
	for _, f := range r.s.fundings {
		if f.FundID == fundID {
			fundingsByOrder[f.OrderID] = f
		}
	}

	var out []*domain.FundedTrade
	for _, t := range r.s.trades {
		funding, ok := fundingsByOrder[t.OrderID]
		if !ok || t.DateTime.Before(from) || !t.DateTime.Before(to) {
			continue
		}
		order, ok := r.s.orders[t.OrderID]
		if !ok {
			return nil, fmt.Errorf("order %s of trade %s: %w", t.OrderID, t.ID, domain.ErrNotFound)
		}
		out = append(out, &domain.FundedTrade{
			Order:   cloneOrder(order),
			Trade:   cloneTrade(t),
			Funding: cloneFunding(funding),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trade.DateTime.Before(out[j].Trade.DateTime) })
	return out, nil
}

func (r tradeRepo) HasOpenOrders(ctx context.Context, fundID uuid.UUID, assetKey string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, f := range r.s.fundings {
		if f.FundID != fundID {
			continue
		}
		order, ok := r.s.orders[f.OrderID]
		if !ok || order.Status != domain.OrderStatusOpen {
			continue
		}
		if order.BaseAsset.Key() == assetKey || order.QuoteAsset.Key() == assetKey {
			return true, nil
		}
	}
	return false, nil
}

// --- navs ---

type navRepo struct{ s *Store }

func (r navRepo) Create(ctx context.Context, nav *domain.Nav) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.navs[nav.ID]; ok {
		return fmt.Errorf("nav %s already exists", nav.ID)
	}
	r.s.navs[nav.ID] = cloneNav(nav)
	return nil
}

func (r navRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.navs[id]; !ok {
		return fmt.Errorf("nav %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.navs, id)
	return nil
}

func (r navRepo) GetPeriodNav(ctx context.Context, fundID uuid.UUID, period domain.Period) (*domain.Nav, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, n := range r.s.navs {
		if n.FundID == fundID && n.Type == domain.NavTypePeriod && n.BookingPeriod == period {
			return cloneNav(n), nil
		}
	}
	return nil, fmt.Errorf("period nav %s for fund %s: %w", period, fundID, domain.ErrNotFound)
}

func (r navRepo) GetLatestPeriodNav(ctx context.Context, fundID uuid.UUID) (*domain.Nav, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *domain.Nav
	for _, n := range r.s.navs {
		if n.FundID != fundID || n.Type != domain.NavTypePeriod {
			continue
		}
		if latest == nil || latest.BookingPeriod.Before(n.BookingPeriod) {
			latest = n
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest period nav for fund %s: %w", fundID, domain.ErrNotFound)
	}
	return cloneNav(latest), nil
}

func (r navRepo) GetPreviousPeriodNav(ctx context.Context, fundID uuid.UUID, before domain.Period) (*domain.Nav, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var previous *domain.Nav
	for _, n := range r.s.navs {
		if n.FundID != fundID || n.Type != domain.NavTypePeriod || !n.BookingPeriod.Before(before) {
			continue
		}
		if previous == nil || previous.BookingPeriod.Before(n.BookingPeriod) {
			previous = n
		}
	}
	if previous == nil {
		return nil, fmt.Errorf("period nav before %s for fund %s: %w", before, fundID, domain.ErrNotFound)
	}
	return cloneNav(previous), nil
}

func (r navRepo) UpsertDaily(ctx context.Context, nav *domain.Nav) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	year, month, day := nav.Date.Date()
	for id, n := range r.s.navs {
		if n.FundID != nav.FundID || n.Type != domain.NavTypeDaily {
			continue
		}
		y, m, d := n.Date.Date()
		if y == year && m == month && d == day {
			delete(r.s.navs, id)
		}
	}
	r.s.navs[nav.ID] = cloneNav(nav)
	return nil
}

func (r navRepo) ListByFund(ctx context.Context, fundID uuid.UUID, navType domain.NavType) ([]*domain.Nav, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Nav
	for _, n := range r.s.navs {
		if n.FundID == fundID && n.Type == navType {
			out = append(out, cloneNav(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
