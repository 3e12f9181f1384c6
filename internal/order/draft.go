package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Draft is the order as it will be sent. It lives for one order view visit.
type Draft struct {
	CoffeeID api.CoffeeID `validate:"required"`
	Quantity int          `validate:"min=1"`
	Name     string       `validate:"required"`
	Email    string
	Notes    string

	// Identified drops the email requirement; the server takes the address
	// from the session instead.
	Identified bool `validate:"-"`
}

// ValidationError lists the fields that kept a draft from being sent, keyed
// by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range []string{"CoffeeID", "Quantity", "Name", "Email"} {
		if msg, ok := e.Fields[name]; ok {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

func (d Draft) Validate() error {
	fields := make(map[string]string)

	trimmed := d
	trimmed.Name = strings.TrimSpace(d.Name)
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("order: validate draft: %w", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	if !d.Identified && strings.TrimSpace(d.Email) == "" {
		fields["Email"] = "Email is required"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Request converts the draft to the wire payload. Notes travel as typed.
func (d Draft) Request() api.OrderRequest {
	return api.OrderRequest{
		Name:     strings.TrimSpace(d.Name),
		CoffeeID: d.CoffeeID,
		Quantity: d.Quantity,
		Notes:    d.Notes,
		Email:    strings.TrimSpace(d.Email),
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
