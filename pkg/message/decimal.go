package message

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// amountRe is the decimal-literal grammar required of amount fields:
// an unsigned integer or decimal, no sign, no exponent.
var amountRe = regexp.MustCompile(`^(\d+|\d+\.\d+)$`)

func validateDecimalAmountField(fl validator.FieldLevel) bool {
	return amountRe.MatchString(fl.Field().String())
}

// ValidateAmount checks that s is a syntactically valid non-negative
// decimal literal. "0" is accepted; "-1" is rejected because the
// leading "-" fails the grammar outright.
func ValidateAmount(field, s string) error {
	if !amountRe.MatchString(s) {
		return &ValidationError{Field: field, Reason: "amount must match ^(\\d+|\\d+\\.\\d+)$"}
	}
	return nil
}

// CompareAmounts parses two decimal-literal amount strings and returns
// a.Cmp(b) semantics: -1 if a<b, 0 if equal, 1 if a>b. It assumes both
// strings already passed ValidateAmount.
func CompareAmounts(a, b string) (int, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "not a valid decimal: " + err.Error()}
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "not a valid decimal: " + err.Error()}
	}
	return da.Cmp(db), nil
}

// AmountLessOrEqual reports whether a <= b, used by Settle.amount <=
// Transfer.amount and Complete.amount <= PaymentRequest.amount.
func AmountLessOrEqual(a, b string) (bool, error) {
	cmp, err := CompareAmounts(a, b)
	if err != nil {
		return false, err
	}
	return cmp <= 0, nil
}
