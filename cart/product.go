// Package cart holds the shopping cart state: the line-items, the pure
// transformations applied to them, and the Store that serializes mutations,
// publishes snapshots and mirrors them to a key-value storage.
package cart

// Product is a cart line-item.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ProductInput describes a product being added; the cart owns the quantity.
type ProductInput struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

func (in ProductInput) withQuantity(q int) Product {
	return Product{
		ID:       in.ID,
		Title:    in.Title,
		ImageURL: in.ImageURL,
		Price:    in.Price,
		Quantity: q,
	}
}
