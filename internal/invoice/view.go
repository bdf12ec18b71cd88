package invoice

import "github.com/noah-isme/crossbill/internal/pricing"

// View is the JSON rendering of an invoice revision. Monetary values are
// formatted with two decimals.
type View struct {
	Revision  int         `json:"revision"`
	Details   DetailsView `json:"details"`
	LineItems []LineView  `json:"lineItems"`
	Totals    TotalsView  `json:"totals"`
}

// DetailsView renders Details.
type DetailsView struct {
	InvoiceNumber          string `json:"invoiceNumber"`
	InvoiceDate            string `json:"invoiceDate"`
	VendorName             string `json:"vendorName"`
	DeliveryStreet         string `json:"deliveryStreet"`
	DeliveryCity           string `json:"deliveryCity"`
	DeliveryZip            string `json:"deliveryZip"`
	CDTFATaxRate           string `json:"cdtfaTaxRate"`
	LookupMessage          string `json:"lookupMessage"`
	ApplyMarkupToAll       bool   `json:"applyMarkupToAll"`
	GlobalMarkupPercentage string `json:"globalMarkupPercentage"`
}

// LineView renders a line item with raw inputs echoed back as typed.
type LineView struct {
	ID                 int    `json:"id"`
	Description        string `json:"description"`
	Cost               string `json:"cost"`
	MarkupPercentage   string `json:"markupPercentage"`
	SalesTaxPercentage string `json:"salesTaxPercentage"`
	CalculatedMarkup   string `json:"calculatedMarkup"`
	CalculatedSalesTax string `json:"calculatedSalesTax"`
	LineTotal          string `json:"lineTotal"`
}

// TotalsView renders pricing.Totals.
type TotalsView struct {
	Subtotal      string `json:"subtotal"`
	TotalMarkup   string `json:"totalMarkup"`
	TotalSalesTax string `json:"totalSalesTax"`
	GrandTotal    string `json:"grandTotal"`
}

// ViewOf converts an invoice into its JSON view.
func ViewOf(inv Invoice) View {
	d := inv.Details
	lines := make([]LineView, 0, len(inv.LineItems))
	for _, it := range inv.LineItems {
		lines = append(lines, LineView{
			ID:                 it.ID,
			Description:        it.Description,
			Cost:               string(it.Cost),
			MarkupPercentage:   string(it.MarkupPercentage),
			SalesTaxPercentage: string(it.SalesTaxPercentage),
			CalculatedMarkup:   pricing.FormatMoney(it.CalculatedMarkup),
			CalculatedSalesTax: pricing.FormatMoney(it.CalculatedSalesTax),
			LineTotal:          pricing.FormatMoney(it.LineTotal),
		})
	}
	return View{
		Revision: inv.Revision,
		Details: DetailsView{
			InvoiceNumber:          d.InvoiceNumber,
			InvoiceDate:            d.InvoiceDate,
			VendorName:             d.VendorName,
			DeliveryStreet:         d.DeliveryStreet,
			DeliveryCity:           d.DeliveryCity,
			DeliveryZip:            d.DeliveryZip,
			CDTFATaxRate:           d.CDTFATaxRate,
			LookupMessage:          d.LookupMessage,
			ApplyMarkupToAll:       d.ApplyMarkupToAll,
			GlobalMarkupPercentage: string(d.GlobalMarkupPercentage),
		},
		LineItems: lines,
		Totals: TotalsView{
			Subtotal:      pricing.FormatMoney(inv.Totals.Subtotal),
			TotalMarkup:   pricing.FormatMoney(inv.Totals.TotalMarkup),
			TotalSalesTax: pricing.FormatMoney(inv.Totals.TotalSalesTax),
			GrandTotal:    pricing.FormatMoney(inv.Totals.GrandTotal),
		},
	}
}
