/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrecision(t *testing.T) {
	assert.Equal(t, int32(2), Precision("USD"))
	assert.Equal(t, int32(2), Precision("EUR"))
	assert.Equal(t, int32(0), Precision("JPY"))
	assert.Equal(t, int32(0), Precision("KRW"))
	assert.Equal(t, int32(3), Precision("BHD"))
	assert.Equal(t, int32(3), Precision("KWD"))
	// Unlisted currencies default to two places.
	assert.Equal(t, int32(2), Precision("XYZ"))
}

func TestRoundToCurrencyIsHalfToEven(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"2.345", "USD", "2.34"},
		{"2.355", "USD", "2.36"},
		{"2.5", "JPY", "2"},
		{"3.5", "JPY", "4"},
		{"1.0005", "BHD", "1.000"},
		{"1.0015", "BHD", "1.002"},
	}
	for _, c := range cases {
		got := RoundToCurrency(decimal.RequireFromString(c.amount), c.currency)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)),
			"rounding %s %s: got %s, want %s", c.amount, c.currency, got, c.want)
	}
}

func TestTransactionLineValue(t *testing.T) {
	line := TransactionLine{
		Quantity: decimal.RequireFromString("4"),
		Rate:     decimal.RequireFromString("2.50"),
	}
	assert.Equal(t, "10.00", line.Value().StringFixed(2))
	assert.True(t, line.HasRate())

	unrated := TransactionLine{Quantity: decimal.RequireFromString("4")}
	assert.False(t, unrated.HasRate())
}

func TestEntryStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusComplete.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
