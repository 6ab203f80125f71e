package nullable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparators(t *testing.T) {
	early := DateOf(2021, time.January, 1)
	late := DateOf(2021, time.January, 2)
	absent := Absent()

	tests := []struct {
		name     string
		lhs, rhs Value
		gt, gte  bool
		lt, lte  bool
	}{
		{"equal", early, early, false, true, false, true},
		{"earlier vs later", early, late, false, false, true, true},
		{"later vs earlier", late, early, true, true, false, false},
		{"present vs absent", early, absent, true, true, false, false},
		{"absent vs present", absent, early, false, false, true, true},
		{"absent vs absent", absent, absent, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.gt, GT(tt.lhs, tt.rhs), "GT")
			assert.Equal(t, tt.gte, GTE(tt.lhs, tt.rhs), "GTE")
			assert.Equal(t, tt.lt, LT(tt.lhs, tt.rhs), "LT")
			assert.Equal(t, tt.lte, LTE(tt.lhs, tt.rhs), "LTE")
		})
	}
}

func TestThresholdComparison(t *testing.T) {
	forty := Number(40)

	assert.True(t, GTE(Number(40), forty))
	assert.True(t, GTE(Number(52.5), forty))
	assert.False(t, GTE(Number(39.9), forty))
	assert.False(t, GTE(Absent(), forty), "absent BMI never meets a threshold")
}

func TestParseDate(t *testing.T) {
	v, err := ParseDate("2021-01-10")
	require.NoError(t, err)
	assert.True(t, v.Present())
	assert.Equal(t, "2021-01-10", v.DateString())
	assert.Equal(t, DateOf(2021, time.January, 10), v)

	v, err = ParseDate("  ")
	require.NoError(t, err)
	assert.False(t, v.Present())
	assert.Equal(t, "", v.DateString())

	_, err = ParseDate("10/01/2021")
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber("41.5")
	require.NoError(t, err)
	assert.Equal(t, 41.5, v.Float())

	v, err = ParseNumber("")
	require.NoError(t, err)
	assert.False(t, v.Present())

	v, err = ParseNumber("NaN")
	require.NoError(t, err)
	assert.False(t, v.Present())

	_, err = ParseNumber("forty")
	assert.Error(t, err)
}

func TestDateIsNotEpochZero(t *testing.T) {
	epoch := DateOf(1970, time.January, 1)

	assert.True(t, epoch.Present())
	assert.Equal(t, 0.0, epoch.Float())
	assert.NotEqual(t, Absent(), epoch)
	assert.True(t, GT(epoch, Absent()))
}

func TestMin(t *testing.T) {
	a := DateOf(2021, time.February, 1)
	b := DateOf(2021, time.January, 15)

	assert.Equal(t, b, Min(a, b))
	assert.Equal(t, b, Min(b, a))
	assert.Equal(t, a, Min(a, Absent()))
	assert.Equal(t, a, Min(Absent(), a))
	assert.False(t, Min(Absent(), Absent()).Present())
}

func TestJSON(t *testing.T) {
	in := map[string]Value{"a": DateOf(2021, time.March, 4), "b": Absent(), "c": Number(40.5)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":18690,"b":null,"c":40.5}`, string(data))

	var out map[string]Value
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
