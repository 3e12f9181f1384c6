package quantity_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/quantity"
)

func TestLedger_GetDefaultsToMin(t *testing.T) {
	l := quantity.NewLedger()
	assert.Equal(t, 1, l.Get("42"))
	assert.Empty(t, l.Entries(), "reading must not create entries")
}

func TestLedger_Seed(t *testing.T) {
	l := quantity.NewLedger()
	l.Seed([]api.CoffeeID{"1", "2", "3", "2"})

	want := []quantity.Entry{{ID: "1", Quantity: 1}, {ID: "2", Quantity: 1}, {ID: "3", Quantity: 1}}
	if diff := cmp.Diff(want, l.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	l.Increment("2")
	l.Seed([]api.CoffeeID{"2", "4"})
	want = []quantity.Entry{{ID: "2", Quantity: 2}, {ID: "4", Quantity: 1}}
	if diff := cmp.Diff(want, l.Entries()); diff != "" {
		t.Errorf("entries after reseed mismatch (-want +got):\n%s", diff)
	}
}

func TestLedger_Steps(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  int
	}{
		{name: "increment twice", steps: []string{"+", "+"}, want: 3},
		{name: "decrement at floor", steps: []string{"-", "-"}, want: 1},
		{name: "up then down", steps: []string{"+", "+", "+", "-"}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := quantity.NewLedger()
			var got int
			for _, s := range tt.steps {
				if s == "+" {
					got = l.Increment("1")
				} else {
					got = l.Decrement("1")
				}
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, l.Get("1"))
		})
	}
}

func TestLedger_SetClamps(t *testing.T) {
	l := quantity.NewLedger()
	assert.Equal(t, 1, l.Set("1", 0))
	assert.Equal(t, 1, l.Set("1", -5))
	assert.Equal(t, 7, l.Set("1", 7))
	assert.Equal(t, 7, l.Get("1"))
}

func TestLedger_IncrementSaturates(t *testing.T) {
	l := quantity.NewLedger()
	l.Set("1", math.MaxInt)

	assert.Equal(t, math.MaxInt, l.Increment("1"))
	assert.Equal(t, math.MaxInt, l.Get("1"))
	assert.Equal(t, math.MaxInt-1, l.Decrement("1"))
}
