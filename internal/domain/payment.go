package domain

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentUPI            PaymentMethod = "upi"
	PaymentNetBanking     PaymentMethod = "net_banking"
)

// PaymentOption describes a method as offered to the shopper.
type PaymentOption struct {
	Method  PaymentMethod `json:"method"`
	Label   string        `json:"label"`
	Enabled bool          `json:"enabled"`
}

var paymentOptions = []PaymentOption{
	{Method: PaymentCashOnDelivery, Label: "Cash on Delivery", Enabled: true},
	{Method: PaymentCard, Label: "Credit / Debit Card", Enabled: false},
	{Method: PaymentUPI, Label: "UPI", Enabled: false},
	{Method: PaymentNetBanking, Label: "Net Banking", Enabled: false},
}

// PaymentOptions lists every method, enabled or not.
func PaymentOptions() []PaymentOption {
	out := make([]PaymentOption, len(paymentOptions))
	copy(out, paymentOptions)
	return out
}

// ParsePaymentMethod accepts only known, enabled methods. An empty value
// selects cash on delivery.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	if s == "" {
		return PaymentCashOnDelivery, nil
	}
	for _, opt := range paymentOptions {
		if string(opt.Method) != s {
			continue
		}
		if !opt.Enabled {
			return "", NewValidationError(FieldError{Field: "paymentMethod", Message: "payment method is not available"})
		}
		return opt.Method, nil
	}
	return "", NewValidationError(FieldError{Field: "paymentMethod", Message: "unknown payment method"})
}
