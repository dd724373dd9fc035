package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatTradeOrg renders a trade attempt as an Org-mode block. Structured
// facts live in a PROPERTIES drawer so they stay searchable.
func FormatTradeOrg(t TradeRecord) string {
	status := "OK"
	if !t.Success {
		status = "REJECTED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %s %d @ %s [%s]\n", t.Type, t.Side, t.Code, t.Volume, t.Price, status)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":TIME: %s\n", t.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CODE: %s\n", t.Code)
	fmt.Fprintf(&b, ":TYPE: %s\n", t.Type)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":PRICE: %s\n", t.Price)
	fmt.Fprintf(&b, ":VOLUME: %d\n", t.Volume)
	if t.Success {
		writeNull(&b, "SLIPPAGE_PRICE", t.SlippagePrice)
		writeNull(&b, "MARGIN", t.Margin)
		writeNull(&b, "COMMISSION", t.Commission)
		writeNull(&b, "REALIZED_PNL", t.RealizedPnL)
	} else {
		fmt.Fprintf(&b, ":ERROR: %s\n", t.Error)
	}
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func writeNull(b *strings.Builder, key string, d decimal.NullDecimal) {
	if d.Valid {
		fmt.Fprintf(b, ":%s: %s\n", key, d.Decimal.StringFixed(2))
	}
}
