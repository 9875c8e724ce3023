package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AssetKind represents the kind of asset a holding is denominated in
type AssetKind string

const (
	AssetKindFiat       AssetKind = "FIAT"
	AssetKindCrypto     AssetKind = "CRYPTO"
	AssetKindFundShares AssetKind = "FUND_SHARES"
)

// Reserved symbols used as valuation axes: every price carries a USD and a
// BTC component, so these two assets always price at 1 against themselves.
const (
	SymbolUSD = "USD"
	SymbolBTC = "BTC"
)

// AssetRef identifies the asset side of a holding: a fiat currency, a
// crypto-currency, or shares of another fund. Exactly one representation is
// populated depending on Kind.
type AssetRef struct {
	Kind   AssetKind
	Symbol string     // FIAT / CRYPTO: currency or coin symbol, e.g. "EUR", "BTC"
	FundID *uuid.UUID // FUND_SHARES: the fund whose shares are held
}

// FiatAsset builds an AssetRef for a fiat currency symbol.
func FiatAsset(symbol string) AssetRef {
	return AssetRef{Kind: AssetKindFiat, Symbol: symbol}
}

// CryptoAsset builds an AssetRef for a crypto-currency symbol.
func CryptoAsset(symbol string) AssetRef {
	return AssetRef{Kind: AssetKindCrypto, Symbol: symbol}
}

// FundSharesAsset builds an AssetRef for shares of another fund.
func FundSharesAsset(fundID uuid.UUID) AssetRef {
	id := fundID
	return AssetRef{Kind: AssetKindFundShares, FundID: &id}
}

// Key returns the canonical identity of the asset, used as the uniqueness
// component of the (fund, asset, booking period) holding key and as the
// lookup key for prices.
func (a AssetRef) Key() string {
	if a.Kind == AssetKindFundShares && a.FundID != nil {
		return fmt.Sprintf("%s:%s", a.Kind, a.FundID)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.Symbol)
}

// Equal reports whether two asset references identify the same asset.
func (a AssetRef) Equal(b AssetRef) bool {
	return a.Key() == b.Key()
}

// Validate ensures the asset reference adheres to domain rules
func (a AssetRef) Validate() error {
	switch a.Kind {
	case AssetKindFiat, AssetKindCrypto:
		if a.Symbol == "" {
			return errors.New("fiat/crypto asset must have a symbol")
		}
		if a.FundID != nil {
			return errors.New("fiat/crypto asset must not reference a fund")
		}
	case AssetKindFundShares:
		if a.FundID == nil {
			return errors.New("fund-shares asset must reference a fund")
		}
	default:
		return errors.New("asset kind must be FIAT, CRYPTO or FUND_SHARES")
	}
	return nil
}
