package cart

// The functions below never modify their input slice; each returns a fresh
// slice so a published snapshot stays valid after later mutations.

// AddToCart returns products with in added. A product already in the cart has
// its quantity raised by one and its descriptor fields refreshed from in,
// keeping its position; a new product is appended with quantity 1.
func AddToCart(products []Product, in ProductInput) []Product {
	out := make([]Product, 0, len(products)+1)
	found := false
	for _, p := range products {
		if p.ID == in.ID {
			p = in.withQuantity(p.Quantity + 1)
			found = true
		}
		out = append(out, p)
	}
	if !found {
		out = append(out, in.withQuantity(1))
	}
	return out
}

// Increment raises the quantity of the product with the given id by one.
// An unknown id leaves the cart unchanged.
func Increment(products []Product, id string) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		if p.ID == id {
			p.Quantity++
		}
		out[i] = p
	}
	return out
}

// Decrement lowers the quantity of the product with the given id by one and
// drops every product left with a quantity below 1.
func Decrement(products []Product, id string) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.ID == id {
			p.Quantity--
		}
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

func clone(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
