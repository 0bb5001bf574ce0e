package payments

import (
	"github.com/shopspring/decimal"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
)

// Split is the per-party share of a captured payment, in integer cents.
type Split struct {
	SwapSpotEarningsCents int64
	SellerEarningsCents   int64
}

// SplitInput carries the stored price breakdown plus the processor's
// authoritative captured amount.
type SplitInput struct {
	AmountReceivedCents int64
	Commission          decimal.Decimal
	ShippingRate        decimal.Decimal
	SwapSpotCommission  decimal.Decimal
	Tax                 decimal.Decimal
}

var centsFactor = decimal.NewFromInt(100)

// ComputeSplit derives each party's share. The amount received comes from the
// capture record, not the stored breakdown, so the split always reconciles
// against money actually held. All math is integer cents.
func ComputeSplit(in SplitInput) Split {
	swapSpotCents := toCents(in.SwapSpotCommission)
	deductions := swapSpotCents + toCents(in.Commission) + toCents(in.ShippingRate) + toCents(in.Tax)
	return Split{
		SwapSpotEarningsCents: swapSpotCents,
		SellerEarningsCents:   in.AmountReceivedCents - deductions,
	}
}

// SplitInputFromSale builds the calculator input from a sale's stored
// breakdown. Zero-valued fields stay zero.
func SplitInputFromSale(sale *models.Sale, amountReceivedCents int64) SplitInput {
	return SplitInput{
		AmountReceivedCents: amountReceivedCents,
		Commission:          sale.Commission,
		ShippingRate:        sale.ShippingRate,
		SwapSpotCommission:  sale.SwapSpotCommission,
		Tax:                 sale.Tax,
	}
}

// SplitInputFromBreakdown uses the sale's stored total in place of the
// capture record. Only for deferring legs to the ledger when the processor is
// unreachable; a direct transfer must never be cut from this estimate.
func SplitInputFromBreakdown(sale *models.Sale) SplitInput {
	return SplitInputFromSale(sale, toCents(sale.Total))
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(centsFactor).Round(0).IntPart()
}
