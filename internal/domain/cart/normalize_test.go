package cart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_GroupsRepeatedProducts(t *testing.T) {
	items := []RawItem{
		{ProductRef: "a", Price: PriceOf(10)},
		{ProductRef: "a", Price: PriceOf(10)},
		{ProductRef: "b", Price: PriceOf(5)},
	}

	lines, total, warnings := Normalize(items)

	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].ProductRef)
	assert.Equal(t, int64(10), lines[0].UnitPrice)
	assert.Equal(t, int64(2), lines[0].Quantity)
	assert.Equal(t, "b", lines[1].ProductRef)
	assert.Equal(t, int64(5), lines[1].UnitPrice)
	assert.Equal(t, int64(1), lines[1].Quantity)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, warnings)
}

func TestNormalize_FallsBackToNormalizedName(t *testing.T) {
	items := []RawItem{
		{Name: "Nasi  Goreng", Price: PriceOf(15000)},
		{Name: "Burger", Price: PriceOf(25000)},
		{Name: " nasi goreng ", Price: PriceOf(15000), Quantity: 2},
	}

	lines, total, _ := Normalize(items)

	require.Len(t, lines, 2)
	// 初出順を保つ
	assert.Equal(t, "Nasi  Goreng", lines[0].Name)
	assert.Equal(t, int64(3), lines[0].Quantity)
	assert.Equal(t, 0, lines[0].Position)
	assert.Equal(t, "Burger", lines[1].Name)
	assert.Equal(t, 1, lines[1].Position)
	assert.Equal(t, int64(15000*3+25000), total)
}

func TestNormalize_DropsItemsWithoutKey(t *testing.T) {
	items := []RawItem{
		{Name: "   ", Price: PriceOf(100)},
		{ProductRef: "x", Price: PriceOf(100)},
	}

	lines, total, warnings := Normalize(items)

	require.Len(t, lines, 1)
	assert.Equal(t, int64(100), total)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnMissingKey, warnings[0].Kind)
	assert.Equal(t, 0, warnings[0].Index)
}

func TestNormalize_UnresolvedPriceIsZeroWithWarning(t *testing.T) {
	var items []RawItem
	require.NoError(t, json.Unmarshal([]byte(`[
		{"product_id":"a","name":"A","price":"abc"},
		{"product_id":"b","name":"B"},
		{"product_id":"c","name":"C","price":"1500"},
		{"product_id":"d","name":"D","price":2500.4}
	]`), &items))

	lines, total, warnings := Normalize(items)

	require.Len(t, lines, 4)
	assert.Equal(t, int64(0), lines[0].UnitPrice)
	assert.Equal(t, int64(0), lines[1].UnitPrice)
	assert.Equal(t, int64(1500), lines[2].UnitPrice)
	assert.Equal(t, int64(2500), lines[3].UnitPrice)
	assert.Equal(t, int64(4000), total)

	require.Len(t, warnings, 2)
	assert.Equal(t, WarnUnresolvedPrice, warnings[0].Kind)
	assert.Equal(t, "a", warnings[0].Key)
	assert.Equal(t, WarnUnresolvedPrice, warnings[1].Kind)
}

func TestNormalize_NegativeQuantityDropped(t *testing.T) {
	lines, total, warnings := Normalize([]RawItem{{ProductRef: "a", Price: PriceOf(10), Quantity: -1}})

	assert.Empty(t, lines)
	assert.Equal(t, int64(0), total)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnInvalidQuantity, warnings[0].Kind)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want Price
	}{
		{"25000", Price{Amount: 25000, Resolved: true}},
		{" 10 ", Price{Amount: 10, Resolved: true}},
		{"99.5", Price{Amount: 100, Resolved: true}},
		{"-1", Price{}},
		{"", Price{}},
		{"Rp 10", Price{}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParsePrice(c.in), c.in)
	}
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "es teh manis", GroupKey("  Es   Teh\tManis "))
	assert.Equal(t, "", GroupKey("   "))
}
