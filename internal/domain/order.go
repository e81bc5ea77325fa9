package domain

// Order is a read-only snapshot of a shop order, the data source for
// template variable resolution. The order store itself is external; the
// pipeline never writes to it.
type Order struct {
	ID                int64
	Number            string
	Total             string
	Currency          string
	Status            string
	BillingFirstName  string
	BillingLastName   string
	BillingPhone      string
	BillingEmail      string
	ShippingFirstName string
	ShippingLastName  string
}
