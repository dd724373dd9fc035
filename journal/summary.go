package journal

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

// RunSummary aggregates the journal of one run.
type RunSummary struct {
	RunID       string
	Attempts    int
	Rejected    int
	Opens       int
	Closes      int
	Wins        int
	Losses      int
	RealizedPnL decimal.Decimal
	Commission  decimal.Decimal

	StartEquity decimal.Decimal
	EndEquity   decimal.Decimal
	MaxDrawdown decimal.Decimal // peak-to-trough equity drop, in money
}

// Summarize folds trade attempts and the equity curve of a run.
func Summarize(runID string, trades []TradeRecord, equity []EquitySnapshot) RunSummary {
	s := RunSummary{RunID: runID}
	for _, t := range trades {
		s.Attempts++
		if !t.Success {
			s.Rejected++
			continue
		}
		if t.Commission.Valid {
			s.Commission = s.Commission.Add(t.Commission.Decimal)
		}
		switch t.Type {
		case market.Open:
			s.Opens++
		case market.Close:
			s.Closes++
			if !t.RealizedPnL.Valid {
				continue
			}
			s.RealizedPnL = s.RealizedPnL.Add(t.RealizedPnL.Decimal)
			switch t.RealizedPnL.Decimal.Sign() {
			case 1:
				s.Wins++
			case -1:
				s.Losses++
			}
		}
	}

	if len(equity) > 0 {
		s.StartEquity = equity[0].Equity()
		s.EndEquity = equity[len(equity)-1].Equity()
		peak := s.StartEquity
		for _, e := range equity {
			eq := e.Equity()
			if eq.GreaterThan(peak) {
				peak = eq
			}
			if dd := peak.Sub(eq); dd.GreaterThan(s.MaxDrawdown) {
				s.MaxDrawdown = dd
			}
		}
	}
	return s
}

// WinRate is wins over closing trades, zero when nothing closed.
func (s RunSummary) WinRate() decimal.Decimal {
	if s.Wins+s.Losses == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(s.Wins + s.Losses)))
}

func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", s.RunID)
	fmt.Fprintf(&b, "  trades:       %d attempted, %d rejected (%d opens, %d closes)\n", s.Attempts, s.Rejected, s.Opens, s.Closes)
	fmt.Fprintf(&b, "  wins/losses:  %d/%d (%s%%)\n", s.Wins, s.Losses, s.WinRate().Mul(decimal.NewFromInt(100)).StringFixed(1))
	fmt.Fprintf(&b, "  realized pnl: %s\n", s.RealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, "  commission:   %s\n", s.Commission.StringFixed(2))
	fmt.Fprintf(&b, "  equity:       %s -> %s (max drawdown %s)\n", s.StartEquity.StringFixed(2), s.EndEquity.StringFixed(2), s.MaxDrawdown.StringFixed(2))
	return b.String()
}
