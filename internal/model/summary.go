package model

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Summary は請求書の集計結果を表す。
type Summary struct {
	TotalRevenue     float64 `json:"totalRevenue"`
	VATCollected     float64 `json:"vatCollected"`
	Outstanding      int     `json:"outstanding"`
	TotalInvoices    int     `json:"totalInvoices"`
	PaidInvoices     int     `json:"paidInvoices"`
	PendingInvoices  int     `json:"pendingInvoices"`
	TotalOutstanding float64 `json:"totalOutstanding"`
}

// Summarize は請求書一覧から集計を算出する。
// 売上とVATは支払い済み、未収額は未払いの合計から求める。outstandingは未払い件数。
func Summarize(invoices []*Invoice) Summary {
	paid, pending := lo.FilterReject(invoices, func(inv *Invoice, _ int) bool {
		return inv.IsPaid()
	})

	revenue := sumDecimal(paid, func(inv *Invoice) float64 { return inv.Total })
	vat := sumDecimal(paid, func(inv *Invoice) float64 { return inv.VAT })
	outstanding := sumDecimal(pending, func(inv *Invoice) float64 { return inv.Total })

	return Summary{
		TotalRevenue:     revenue.InexactFloat64(),
		VATCollected:     vat.InexactFloat64(),
		Outstanding:      len(pending),
		TotalInvoices:    len(invoices),
		PaidInvoices:     len(paid),
		PendingInvoices:  len(pending),
		TotalOutstanding: outstanding.InexactFloat64(),
	}
}

func sumDecimal(invoices []*Invoice, field func(*Invoice) float64) decimal.Decimal {
	return lo.Reduce(invoices, func(acc decimal.Decimal, inv *Invoice, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(field(inv)))
	}, decimal.Zero)
}
