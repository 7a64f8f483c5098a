package order

import "github.com/shopspring/decimal"

const (
	UserSharePercent = 50
	TaxPercent       = 10
)

var hundred = decimal.NewFromInt(100)

// Split is how one order's commission is divided.
type Split struct {
	Commission int64
	User       int64
	Tax        int64
	SystemFee  int64
}

// SplitCommission computes commission = floor(gmv * rate / 100) and divides
// it. Fractions are always dropped from the user share and tax, so the system
// fee absorbs rounding and the parts always add up to the commission.
func SplitCommission(gmv int64, ratePercent decimal.Decimal) Split {
	if gmv <= 0 || !ratePercent.IsPositive() {
		return Split{}
	}
	commission := decimal.NewFromInt(gmv).Mul(ratePercent).Div(hundred).Floor()
	user := commission.Mul(decimal.NewFromInt(UserSharePercent)).Div(hundred).Floor()
	tax := commission.Mul(decimal.NewFromInt(TaxPercent)).Div(hundred).Floor()
	s := Split{
		Commission: commission.IntPart(),
		User:       user.IntPart(),
		Tax:        tax.IntPart(),
	}
	s.SystemFee = s.Commission - s.User - s.Tax
	return s
}
