package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// CoffeeID is the catalog identifier in its normalized text form. The remote
// service sends numbers while paths carry text, so both decode to the same value.
type CoffeeID string

// ParseCoffeeID normalizes raw into a CoffeeID: surrounding space is dropped and
// integer values lose leading zeros and sign noise ("007" and "+7" become "7").
func ParseCoffeeID(raw string) CoffeeID {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return CoffeeID(strconv.FormatInt(n, 10))
	}
	return CoffeeID(raw)
}

func (id CoffeeID) String() string {
	return string(id)
}

func (id CoffeeID) numeric() bool {
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

func (id *CoffeeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ParseCoffeeID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == "" {
		return errors.New("api: empty coffee id")
	}
	*id = ParseCoffeeID(n.String())
	return nil
}

// MarshalJSON writes integer ids as JSON numbers, which is what the order
// endpoint expects for coffeeId.
func (id CoffeeID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Coffee struct {
	ID    CoffeeID `json:"id"`
	Name  string   `json:"name"`
	Image string   `json:"image"`
}

type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type OrderRequest struct {
	Name     string   `json:"name"`
	CoffeeID CoffeeID `json:"coffeeId"`
	Quantity int      `json:"quantity"`
	Notes    string   `json:"notes"`
	Email    string   `json:"email"`
}

// OrderReceipt keeps only the status; other server-assigned fields are ignored.
type OrderReceipt struct {
	Status string `json:"status"`
}

// envelope is the {status, user, error} shape shared by /me, /login and /register.
type envelope struct {
	Status string `json:"status"`
	User   *User  `json:"user,omitempty"`
	Error  string `json:"error,omitempty"`
}
