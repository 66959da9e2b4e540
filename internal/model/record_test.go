package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValueFromAny(t *testing.T) {
	assert.True(t, FromAny(nil).IsNull())
	assert.Equal(t, KindNumber, FromAny(int64(5)).Kind())
	assert.Equal(t, KindNumber, FromAny(2.5).Kind())
	assert.Equal(t, KindString, FromAny("oak").Kind())
	assert.Equal(t, KindString, FromAny([]byte("oak")).Kind())
}

func TestFieldValueAsFloat(t *testing.T) {
	v, ok := Number(2.5).AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)

	v, ok = String(" 30 ").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 30.0, v, 1e-9)

	_, ok = String("oak").AsFloat()
	assert.False(t, ok)

	_, ok = Null.AsFloat()
	assert.False(t, ok)
}

func TestFieldValueKey(t *testing.T) {
	// SQL integer ids and CSV-parsed ids must produce the same key
	assert.Equal(t, "42", FromAny(int64(42)).Key())
	assert.Equal(t, "42", FromAny(42.0).Key())
	assert.Equal(t, "42", FromAny("42").Key())
	assert.Equal(t, "1.5", Number(1.5).Key())
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{
		"dbh":     Number(30),
		"species": String("Araucaria"),
		"height":  Null,
	}

	assert.True(t, rec.Has("height"))
	assert.False(t, rec.Has("wood_density"))

	_, ok := rec.Float("height")
	assert.False(t, ok)

	vars := rec.NumericFields()
	assert.Equal(t, map[string]float64{"dbh": 30}, vars)
}

func TestGroupIDMatches(t *testing.T) {
	num := GroupIDFromNumber(12)
	str := GroupIDFromString("12")

	assert.True(t, num.Matches(Number(12)))
	assert.True(t, num.Matches(String("12")))
	assert.True(t, str.Matches(Number(12)))
	assert.True(t, str.Matches(String("12")))
	assert.False(t, num.Matches(Number(13)))
	assert.False(t, num.Matches(Null))

	name := GroupIDFromString("north-ridge")
	assert.True(t, name.Matches(String("north-ridge")))
	assert.False(t, name.Matches(String("south-ridge")))
}

func TestGroupIDValue(t *testing.T) {
	assert.Equal(t, int64(12), GroupIDFromNumber(12).Value())
	assert.Equal(t, 1.5, GroupIDFromNumber(1.5).Value())
	assert.Equal(t, "plot-7", GroupIDFromString("plot-7").Value())
}

func TestGroupIDFromAny(t *testing.T) {
	assert.Nil(t, GroupIDFromAny(nil))

	g := GroupIDFromAny(12.0) // JSON numbers decode as float64
	require.NotNil(t, g)
	assert.Equal(t, int64(12), g.Value())
}
