package api_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
)

func TestParseCoffeeID(t *testing.T) {
	tests := []struct {
		raw  string
		want api.CoffeeID
	}{
		{raw: "2", want: "2"},
		{raw: " 2 ", want: "2"},
		{raw: "002", want: "2"},
		{raw: "+2", want: "2"},
		{raw: "flat-white", want: "flat-white"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, api.ParseCoffeeID(tt.raw))
		})
	}
}

func TestCoffeeID_UnmarshalJSON(t *testing.T) {
	var items []api.Coffee
	err := json.Unmarshal([]byte(`[{"id":2,"name":"Latte"},{"id":"2","name":"Latte"},{"id":"mocha","name":"Mocha"}]`), &items)
	require.NoError(t, err)

	assert.Equal(t, items[0].ID, items[1].ID)
	assert.Equal(t, api.CoffeeID("mocha"), items[2].ID)

	var c api.Coffee
	assert.Error(t, json.Unmarshal([]byte(`{"id":null}`), &c))
}

func TestCoffeeID_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]api.CoffeeID{"n": "7", "s": "mocha"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7,"s":"mocha"}`, string(data))
}

func TestResult_MessageOr(t *testing.T) {
	assert.Equal(t, "fallback", api.Fail[api.User]("").MessageOr("fallback"))
	assert.Equal(t, "nope", api.Fail[api.User]("nope").MessageOr("fallback"))

	ok := api.Ok(api.User{Username: "ana"})
	assert.True(t, ok.IsOk())
	assert.Equal(t, "ana", ok.Value().Username)
}
