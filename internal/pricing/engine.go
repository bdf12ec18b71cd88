package pricing

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places monetary values are rounded to.
const MoneyPlaces int32 = 2

// LineItem is a single invoice line. Cost and the two percentages hold the raw
// user input; the Calculated* fields and LineTotal are derived by ComputeLine.
type LineItem struct {
	ID                 int
	Description        string
	Cost               Input
	MarkupPercentage   Input
	SalesTaxPercentage Input

	CalculatedMarkup   decimal.Decimal
	CalculatedSalesTax decimal.Decimal
	LineTotal          decimal.Decimal
}

// Totals aggregates derived values across all line items.
type Totals struct {
	Subtotal      decimal.Decimal
	TotalMarkup   decimal.Decimal
	TotalSalesTax decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Breakdown exposes the unrounded intermediate values of a line computation.
type Breakdown struct {
	Cost               decimal.Decimal
	MarkupPercentage   decimal.Decimal
	Markup             decimal.Decimal
	AfterMarkup        decimal.Decimal
	SalesTaxPercentage decimal.Decimal
	SalesTax           decimal.Decimal
	Total              decimal.Decimal
}

// Explain runs the line algorithm without rounding. When markupOverride is
// non-nil it replaces the item's own markup percentage.
func Explain(item LineItem, markupOverride *decimal.Decimal) Breakdown {
	cost := item.Cost.Decimal()
	markupPct := item.MarkupPercentage.Decimal()
	if markupOverride != nil {
		markupPct = *markupOverride
	}
	taxPct := item.SalesTaxPercentage.Decimal()

	markup := percentOf(cost, markupPct)
	afterMarkup := cost.Add(markup)
	// tax compounds on top of the marked-up amount
	tax := percentOf(afterMarkup, taxPct)

	return Breakdown{
		Cost:               cost,
		MarkupPercentage:   markupPct,
		Markup:             markup,
		AfterMarkup:        afterMarkup,
		SalesTaxPercentage: taxPct,
		SalesTax:           tax,
		Total:              afterMarkup.Add(tax),
	}
}

// ComputeLine returns a copy of item with its derived fields recalculated.
// Markup, sales tax and line total are each rounded independently to two
// places, half away from zero. The item's stored markup percentage is never
// modified, even when markupOverride is set.
func ComputeLine(item LineItem, markupOverride *decimal.Decimal) LineItem {
	b := Explain(item, markupOverride)
	item.CalculatedMarkup = RoundMoney(b.Markup)
	item.CalculatedSalesTax = RoundMoney(b.SalesTax)
	item.LineTotal = RoundMoney(b.Total)
	return item
}

// ComputeTotals folds line items into invoice totals. Subtotal sums the parsed
// raw cost; the other totals sum the derived fields. Rounding happens once,
// after accumulation.
func ComputeTotals(items []LineItem) Totals {
	var subtotal, markup, tax, grand decimal.Decimal
	for _, it := range items {
		subtotal = subtotal.Add(it.Cost.Decimal())
		markup = markup.Add(it.CalculatedMarkup)
		tax = tax.Add(it.CalculatedSalesTax)
		grand = grand.Add(it.LineTotal)
	}
	return Totals{
		Subtotal:      RoundMoney(subtotal),
		TotalMarkup:   RoundMoney(markup),
		TotalSalesTax: RoundMoney(tax),
		GrandTotal:    RoundMoney(grand),
	}
}

// ComputeAll recomputes every line and the totals. When applyToAll is set the
// global markup percentage overrides each line's own percentage.
func ComputeAll(items []LineItem, applyToAll bool, globalMarkup Input) ([]LineItem, Totals) {
	var override *decimal.Decimal
	if applyToAll {
		pct := globalMarkup.Decimal()
		override = &pct
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = ComputeLine(it, override)
	}
	return out, ComputeTotals(out)
}

// RoundMoney rounds to MoneyPlaces using half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders d with exactly MoneyPlaces decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct.Shift(-2))
}
