package app

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

const (
	PhonePrefix       = "+998"
	minPhoneDigits    = 12
	minNameLength     = 2
	MinQuantity       = 1
	MaxQuantity       = 100
	maxMessageLength  = 1000
	maxIdempotencyKey = 128
)

// CreateOrderInput is the raw, untrusted payload as decoded from the wire.
// Quantity is kept as a float so non-integer numbers can be rejected.
type CreateOrderInput struct {
	CustomerName    string
	CustomerPhone   string
	CustomerMessage string
	Items           []ItemInput
	IdempotencyKey  string
}

type ItemInput struct {
	ProductID       string
	Quantity        float64
	SelectedOptions domain.SelectedOptions
}

// ValidateRequest normalizes in and checks it. The first failing rule decides the error.
func ValidateRequest(in CreateOrderInput) (domain.OrderRequest, error) {
	name := strings.TrimSpace(in.CustomerName)
	if utf8.RuneCountInString(name) < minNameLength {
		return domain.OrderRequest{}, &domain.ValidationError{Field: "customer_name", Code: domain.CodeNameTooShort}
	}

	phone, ok := normalizePhone(in.CustomerPhone)
	if !ok {
		return domain.OrderRequest{}, &domain.ValidationError{Field: "customer_phone", Code: domain.CodePhoneInvalid}
	}

	if len(in.Items) == 0 {
		return domain.OrderRequest{}, &domain.ValidationError{Field: "items", Code: domain.CodeItemsEmpty}
	}

	items := make([]domain.RequestItem, 0, len(in.Items))
	for _, it := range in.Items {
		q := it.Quantity
		if q != math.Trunc(q) || q < MinQuantity || q > MaxQuantity {
			return domain.OrderRequest{}, &domain.ValidationError{Field: "items.quantity", Code: domain.CodeQuantityRange}
		}
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return domain.OrderRequest{}, &domain.ValidationError{Field: "items.product_id", Code: domain.CodeProductIDMissing}
		}
		items = append(items, domain.RequestItem{
			ProductID: id,
			Quantity:  int(q),
			SelectedOptions: domain.SelectedOptions{
				Size:  strings.TrimSpace(it.SelectedOptions.Size),
				Color: strings.TrimSpace(it.SelectedOptions.Color),
			},
		})
	}

	// Keys are compared whole, so an oversized one is rejected, never cut.
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return domain.OrderRequest{}, &domain.ValidationError{Field: "idempotency_key", Code: domain.CodeIdempotencyKey}
	}

	return domain.OrderRequest{
		CustomerName:    name,
		CustomerPhone:   phone,
		CustomerMessage: truncateRunes(strings.TrimSpace(in.CustomerMessage), maxMessageLength),
		Items:           items,
		IdempotencyKey:  key,
	}, nil
}

// normalizePhone strips common separators and checks the Uzbek +998 format.
func normalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == ' ' || r == '-' || r == '(' || r == ')':
			continue
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	phone := b.String()
	if !strings.HasPrefix(phone, PhonePrefix) {
		return "", false
	}
	if len(phone)-1 < minPhoneDigits {
		return "", false
	}
	return phone, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
