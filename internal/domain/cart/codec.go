package cart

import (
	"encoding/json"
	"log"

	"github.com/shopspring/decimal"
)

// rawLine mirrors Line but defers all type checks, because cart
// payloads come back from client-stored session state and cannot be
// trusted to hold the shape we wrote.
type rawLine struct {
	ProductID string      `json:"product_id"`
	Quantity  json.Number `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

// Encode serializes the cart for session storage.
func (c *Cart) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Decode rebuilds a cart from session storage. Entries that fail type
// or range checks are dropped and logged instead of poisoning the
// cart: a bad entry means the stored payload was tampered with or
// written by an older, incompatible version.
func Decode(data []byte) *Cart {
	c := New()
	if len(data) == 0 {
		return c
	}

	var raw struct {
		Items map[string]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[Cart] Dropping unreadable cart payload: %v", err)
		return c
	}

	for id, entry := range raw.Items {
		var rl rawLine
		if err := json.Unmarshal(entry, &rl); err != nil {
			log.Printf("[Cart] Dropping malformed line for product %s: %v", id, err)
			continue
		}

		qty, err := rl.Quantity.Int64()
		if err != nil || qty <= 0 {
			log.Printf("[Cart] Dropping line for product %s: bad quantity %q", id, rl.Quantity)
			continue
		}

		price, err := decimal.NewFromString(rl.UnitPrice.String())
		if err != nil || price.IsNegative() {
			log.Printf("[Cart] Dropping line for product %s: bad price %q", id, rl.UnitPrice)
			continue
		}

		c.Items[id] = Line{ProductID: id, Quantity: int(qty), UnitPrice: price}
	}
	return c
}
