package cart

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedSnapshot is wrapped by DecodeSnapshot when the stored payload is
// not a JSON list of line-items.
var ErrMalformedSnapshot = errors.New("cart: malformed snapshot")

// EncodeSnapshot serializes the whole cart as a JSON array.
func EncodeSnapshot(products []Product) (string, error) {
	if products == nil {
		products = []Product{}
	}
	b, err := json.Marshal(products)
	if err != nil {
		return "", errors.Wrap(err, "encode cart snapshot")
	}
	return string(b), nil
}

// DecodeSnapshot parses a payload written by EncodeSnapshot. Entries with a
// quantity below 1 are dropped and a repeated id is folded into its first
// occurrence.
func DecodeSnapshot(payload string) ([]Product, error) {
	if strings.TrimSpace(payload) == "" {
		return []Product{}, nil
	}
	var raw []Product
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, errors.Wrapf(ErrMalformedSnapshot, "%v", err)
	}

	out := make([]Product, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, p := range raw {
		if p.Quantity < 1 {
			continue
		}
		if i, ok := index[p.ID]; ok {
			out[i].Quantity += p.Quantity
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out, nil
}
