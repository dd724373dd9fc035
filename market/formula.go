package market

import "github.com/shopspring/decimal"

// MarginPlaces is the precision margins are rounded to.
const MarginPlaces = 2

// NotionalValue is price * volume * multiplier.
func NotionalValue(price decimal.Decimal, volume int64, multiplier int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(volume)).Mul(decimal.NewFromInt(multiplier))
}

// ContractMargin is the notional value scaled by the margin rate, rounded
// half-to-even to two places.
func ContractMargin(price decimal.Decimal, volume int64, multiplier int64, marginRate decimal.Decimal) decimal.Decimal {
	return NotionalValue(price, volume, multiplier).Mul(marginRate).RoundBank(MarginPlaces)
}

func UnrealizedPnL(side Side, openPrice, lastPrice decimal.Decimal, volume int64, multiplier int64) decimal.Decimal {
	dir := decimal.NewFromInt(side.Direction())
	return dir.Mul(lastPrice.Sub(openPrice)).Mul(decimal.NewFromInt(volume)).Mul(decimal.NewFromInt(multiplier))
}

// RealizedPnL is the closed PnL net of the closing commission.
func RealizedPnL(side Side, openPrice, closePrice decimal.Decimal, volume int64, multiplier int64, commission decimal.Decimal) decimal.Decimal {
	return UnrealizedPnL(side, openPrice, closePrice, volume, multiplier).Sub(commission)
}

// SlippagePrice moves the reference price against the trader by
// tickSize * slippage. Buying (open long, close short) raises it,
// selling (open short, close long) lowers it.
func SlippagePrice(ref, tickSize, slippage decimal.Decimal, tt TradeType, side Side) decimal.Decimal {
	delta := tickSize.Mul(slippage)
	if buys(tt, side) {
		return ref.Add(delta)
	}
	return ref.Sub(delta)
}

// WithinSlippage reports whether price is at least as favorable to the
// counterparty as the slippage-adjusted reference: a buyer must bid at or
// above it, a seller must offer at or below it.
func WithinSlippage(price, slipPrice decimal.Decimal, tt TradeType, side Side) bool {
	if buys(tt, side) {
		return price.GreaterThanOrEqual(slipPrice)
	}
	return price.LessThanOrEqual(slipPrice)
}

func buys(tt TradeType, side Side) bool {
	return (tt == Open && side == Long) || (tt == Close && side == Short)
}
