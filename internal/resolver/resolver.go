// Package resolver maps order data to ordered template variable values.
package resolver

import (
	"sort"
	"strconv"

	"github.com/ordercast/wadispatch/internal/domain"
)

// extractor pulls one variable value from an order snapshot. siteName is the
// one value drawn from site-wide configuration rather than the order.
type extractor func(order domain.Order, siteName string) string

// extractors is the closed resolver-key table. Template slot positions
// ({{1}}, {{2}}, ...) are positionally bound to the resolved output, so the
// key set and its source fields must stay stable.
var extractors = map[string]extractor{
	"order_id":            func(o domain.Order, _ string) string { return strconv.FormatInt(o.ID, 10) },
	"order_number":        func(o domain.Order, _ string) string { return o.Number },
	"order_total":         func(o domain.Order, _ string) string { return o.Total },
	"order_currency":      func(o domain.Order, _ string) string { return o.Currency },
	"billing_first_name":  func(o domain.Order, _ string) string { return o.BillingFirstName },
	"billing_last_name":   func(o domain.Order, _ string) string { return o.BillingLastName },
	"billing_phone":       func(o domain.Order, _ string) string { return o.BillingPhone },
	"billing_email":       func(o domain.Order, _ string) string { return o.BillingEmail },
	"shipping_first_name": func(o domain.Order, _ string) string { return o.ShippingFirstName },
	"shipping_last_name":  func(o domain.Order, _ string) string { return o.ShippingLastName },
	"status":              func(o domain.Order, _ string) string { return o.Status },
	"site_name":           func(_ domain.Order, siteName string) string { return siteName },
}

// Resolver resolves ordered variable lists from order snapshots.
type Resolver struct {
	siteName string
}

func New(siteName string) *Resolver {
	return &Resolver{siteName: siteName}
}

// Resolve returns one value per key, in key order. Unrecognized keys resolve
// to an empty string; Resolve never fails. Key validity is checked when a
// mapping is saved, not here.
func (r *Resolver) Resolve(order domain.Order, keys []string) []string {
	values := make([]string, len(keys))
	for i, key := range keys {
		if fn, ok := extractors[key]; ok {
			values[i] = fn(order, r.siteName)
		}
	}
	return values
}

// KnownKeys returns the valid resolver keys, sorted.
func KnownKeys() []string {
	keys := make([]string, 0, len(extractors))
	for key := range extractors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a valid resolver key.
func IsKnown(key string) bool {
	_, ok := extractors[key]
	return ok
}
