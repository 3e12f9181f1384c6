package navigation

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/quantity"
)

const QuantityParam = "quantity"

// EncodeOrder builds the order view reference for id with the selected
// quantity carried in the query string.
func EncodeOrder(id api.CoffeeID, q int) string {
	query := url.Values{QuantityParam: {strconv.Itoa(quantity.Clamp(q))}}
	return "/order/" + url.PathEscape(id.String()) + "?" + query.Encode()
}

// DecodeQuantity reads the quantity parameter from a raw query string. Absent,
// malformed, zero or negative values all decode to quantity.Min.
func DecodeQuantity(rawQuery string) int {
	values, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	raw := strings.TrimSpace(values.Get(QuantityParam))
	if raw == "" {
		return quantity.Min
	}
	q, err := strconv.Atoi(raw)
	if err != nil || q < quantity.Min {
		return quantity.Min
	}
	return q
}
