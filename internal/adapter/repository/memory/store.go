// Package memory provides an in-memory implementation of the persistence
// boundary: every repository, the price oracle, and the transaction manager.
// It backs the ledger tests and the dry-run store of the close runner.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// listing is one stored price point for an asset.
type listing struct {
	AssetKey string
	At       time.Time
	USDPrice decimal.Decimal
	BTCPrice decimal.Decimal
}

// Store holds all aggregates behind a single mutex. Units of work snapshot
// the maps up front and restore them when the unit fails, giving the same
// all-or-nothing behavior as a database transaction.
type Store struct {
	txMu sync.Mutex // serializes units of work
	mu   sync.RWMutex

	funds     map[uuid.UUID]*domain.Fund
	holdings  map[uuid.UUID]*domain.Holding
	navs      map[uuid.UUID]*domain.Nav
	transfers map[uuid.UUID]*domain.Transfer
	orders    map[uuid.UUID]*domain.Order
	trades    map[uuid.UUID]*domain.Trade
	fundings  map[uuid.UUID]*domain.OrderFunding
	listings  []listing
	rates     []*domain.CurrencyRate
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		funds:     make(map[uuid.UUID]*domain.Fund),
		holdings:  make(map[uuid.UUID]*domain.Holding),
		navs:      make(map[uuid.UUID]*domain.Nav),
		transfers: make(map[uuid.UUID]*domain.Transfer),
		orders:    make(map[uuid.UUID]*domain.Order),
		trades:    make(map[uuid.UUID]*domain.Trade),
		fundings:  make(map[uuid.UUID]*domain.OrderFunding),
	}
}

// Funds returns the fund repository view of the store.
func (s *Store) Funds() domain.FundRepository { return fundRepo{s} }

// Holdings returns the holding repository view of the store.
func (s *Store) Holdings() domain.HoldingRepository { return holdingRepo{s} }

// Transfers returns the transfer repository view of the store.
func (s *Store) Transfers() domain.TransferRepository { return transferRepo{s} }

// Trades returns the trade repository view of the store.
func (s *Store) Trades() domain.TradeRepository { return tradeRepo{s} }

// Navs returns the nav repository view of the store.
func (s *Store) Navs() domain.NavRepository { return navRepo{s} }

// Oracle returns the price oracle view of the store.
func (s *Store) Oracle() domain.PriceOracle { return oracle{s} }

// Tx returns the transaction manager view of the store.
func (s *Store) Tx() domain.TxManager { return txManager{s} }

// --- seed helpers for tests and dry runs ---

// AddListing stores a price point for an asset.
func (s *Store) AddListing(assetKey string, at time.Time, usdPrice, btcPrice decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, listing{AssetKey: assetKey, At: at, USDPrice: usdPrice, BTCPrice: btcPrice})
}

// AddCurrencyRate stores an FX rate snapshot and returns it.
func (s *Store) AddCurrencyRate(currency string, usdRate decimal.Decimal, at time.Time) *domain.CurrencyRate {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate := &domain.CurrencyRate{ID: uuid.New(), Currency: currency, USDRate: usdRate, Date: at}
	s.rates = append(s.rates, rate)
	return rate
}

// AddOrder stores an order with its fills and fundings.
func (s *Store) AddOrder(order *domain.Order, trades []*domain.Trade, fundings []*domain.OrderFunding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	for _, t := range trades {
		s.trades[t.ID] = cloneTrade(t)
	}
	for _, f := range fundings {
		s.fundings[f.ID] = cloneFunding(f)
	}
}

// --- unit of work ---

type txManager struct{ s *Store }

type snapshot struct {
	funds     map[uuid.UUID]*domain.Fund
	holdings  map[uuid.UUID]*domain.Holding
	navs      map[uuid.UUID]*domain.Nav
	transfers map[uuid.UUID]*domain.Transfer
}

// WithinTx serializes the unit of work and restores the pre-tx state of all
// close-mutable aggregates when fn fails or panics.
func (m txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	snap := m.s.takeSnapshot()
	defer func() {
		if r := recover(); r != nil {
			m.s.restore(snap)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) takeSnapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		funds:     make(map[uuid.UUID]*domain.Fund, len(s.funds)),
		holdings:  make(map[uuid.UUID]*domain.Holding, len(s.holdings)),
		navs:      make(map[uuid.UUID]*domain.Nav, len(s.navs)),
		transfers: make(map[uuid.UUID]*domain.Transfer, len(s.transfers)),
	}
	for id, f := range s.funds {
		snap.funds[id] = cloneFund(f)
	}
	for id, h := range s.holdings {
		snap.holdings[id] = cloneHolding(h)
	}
	for id, n := range s.navs {
		snap.navs[id] = cloneNav(n)
	}
	for id, t := range s.transfers {
		snap.transfers[id] = cloneTransfer(t)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funds = snap.funds
	s.holdings = snap.holdings
	s.navs = snap.navs
	s.transfers = snap.transfers
}

// --- price oracle ---

type oracle struct{ s *Store }

func (o oracle) GetPriceAsOf(ctx context.Context, asset domain.AssetRef, at time.Time) (*domain.AssetPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	key := asset.Key()
	var best *listing
	for i := range o.s.listings {
		l := &o.s.listings[i]
		if l.AssetKey != key || l.At.After(at) {
			continue
		}
		if best == nil || l.At.After(best.At) {
			best = l
		}
	}
	if best == nil {
		return nil, &domain.PriceUnavailableError{AssetKey: key, At: at}
	}
	return &domain.AssetPrice{USDPrice: best.USDPrice, BTCPrice: best.BTCPrice}, nil
}

func (o oracle) GetCurrencyRateAsOf(ctx context.Context, currency string, at time.Time) (*domain.CurrencyRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	var best *domain.CurrencyRate
	for _, r := range o.s.rates {
		if r.Currency != currency || r.Date.After(at) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	if best == nil {
		return nil, &domain.PriceUnavailableError{AssetKey: domain.FiatAsset(currency).Key(), At: at}
	}
	rate := *best
	return &rate, nil
}

// --- clone helpers: repositories hand out copies, like rows from a DB ---

func cloneFund(f *domain.Fund) *domain.Fund {
	c := *f
	c.Layers = append([]domain.FundLayer(nil), f.Layers...)
	c.Categories = append([]domain.FundCategory(nil), f.Categories...)
	return &c
}

func cloneHolding(h *domain.Holding) *domain.Holding {
	c := *h
	c.Asset = cloneAsset(h.Asset)
	c.PeriodClosedDateTime = cloneTime(h.PeriodClosedDateTime)
	c.PreviousHoldingID = cloneID(h.PreviousHoldingID)
	c.NextHoldingID = cloneID(h.NextHoldingID)
	return &c
}

func cloneNav(n *domain.Nav) *domain.Nav {
	c := *n
	return &c
}

func cloneTransfer(t *domain.Transfer) *domain.Transfer {
	c := *t
	if t.Shares != nil {
		shares := *t.Shares
		c.Shares = &shares
	}
	c.FeeHoldingID = cloneID(t.FeeHoldingID)
	c.OppositeTransferID = cloneID(t.OppositeTransferID)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.BaseAsset = cloneAsset(o.BaseAsset)
	c.QuoteAsset = cloneAsset(o.QuoteAsset)
	return &c
}

func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	return &c
}

func cloneFunding(f *domain.OrderFunding) *domain.OrderFunding {
	c := *f
	return &c
}

func cloneAsset(a domain.AssetRef) domain.AssetRef {
	c := a
	c.FundID = cloneID(a.FundID)
	return c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sortHoldings(holdings []*domain.Holding) {
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].BookingPeriod != holdings[j].BookingPeriod {
			return holdings[i].BookingPeriod.Before(holdings[j].BookingPeriod)
		}
		return holdings[i].Asset.Key() < holdings[j].Asset.Key()
	})
}
