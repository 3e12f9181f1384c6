package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/coffee-order/internal/order"
)

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name       string
		draft      order.Draft
		wantFields []string
	}{
		{
			name:  "anonymous complete",
			draft: order.Draft{CoffeeID: "2", Quantity: 1, Name: "Ana", Email: "ana@example.com"},
		},
		{
			name:  "identified without email",
			draft: order.Draft{CoffeeID: "2", Quantity: 1, Name: "ana", Identified: true},
		},
		{
			name:       "anonymous without email",
			draft:      order.Draft{CoffeeID: "2", Quantity: 1, Name: "Ana"},
			wantFields: []string{"Email"},
		},
		{
			name:       "blank name",
			draft:      order.Draft{CoffeeID: "2", Quantity: 1, Name: "   ", Email: "a@b.c"},
			wantFields: []string{"Name"},
		},
		{
			name:       "nothing filled",
			draft:      order.Draft{},
			wantFields: []string{"CoffeeID", "Quantity", "Name", "Email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *order.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestDraft_Request(t *testing.T) {
	d := order.Draft{CoffeeID: "2", Quantity: 3, Name: " Ana ", Email: " ana@example.com", Notes: "  extra foam "}
	req := d.Request()

	assert.Equal(t, "Ana", req.Name)
	assert.Equal(t, "ana@example.com", req.Email)
	assert.Equal(t, "  extra foam ", req.Notes, "notes go out as typed")
	assert.Equal(t, 3, req.Quantity)
}
