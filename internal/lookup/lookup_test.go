package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primis-cohort/pkg/nullable"
)

func TestAgeBands_Assign(t *testing.T) {
	bands := DefaultAgeBands()

	tests := []struct {
		age  int
		want int
	}{
		{-1, 1}, {0, 1}, {15, 1}, {16, 2}, {29, 2}, {30, 3}, {49, 4}, {50, 5},
		{54, 5}, {55, 6}, {60, 7}, {64, 7}, {65, 8}, {70, 9}, {75, 10}, {79, 10},
		{80, 11}, {84, 11}, {85, 12}, {119, 12}, {120, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bands.Assign(tt.age), "age %d", tt.age)
	}
}

func TestAgeBands_Aggregates(t *testing.T) {
	bands := DefaultAgeBands()

	b, ok := bands.Band(18)
	require.True(t, ok)
	assert.True(t, b.Contains(150))
	assert.Equal(t, "75+", b.String())

	b, ok = bands.Band(1)
	require.True(t, ok)
	assert.Equal(t, "<16", b.String())

	b, _ = bands.Band(15)
	assert.Equal(t, "50-64", b.String())

	_, ok = bands.Band(19)
	assert.False(t, ok)

	_, err := NewAgeBands(1, 40)
	assert.Error(t, err)

	custom, err := NewAgeBands(13, 1)
	require.NoError(t, err)
	assert.Equal(t, 13, custom.Assign(70))
	assert.Equal(t, 1, custom.Assign(3))
	assert.Equal(t, 0, custom.Assign(40))
}

func TestDeprivationBands_Assign(t *testing.T) {
	bands, err := NewDeprivationBands(DefaultIMDMax)
	require.NoError(t, err)

	tests := []struct {
		name string
		imd  nullable.Value
		want int
	}{
		{"absent", nullable.Absent(), 0},
		{"zero", nullable.Number(0), 1},
		{"first boundary is inclusive", nullable.Number(32844 * 0.2), 1},
		{"just past first boundary", nullable.Number(6569), 2},
		{"middle", nullable.Number(16422), 3},
		{"fourth", nullable.Number(26000), 4},
		{"maximum", nullable.Number(32844), 5},
		{"above maximum", nullable.Number(40000), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bands.Assign(tt.imd))
		})
	}

	_, err = NewDeprivationBands(0)
	assert.Error(t, err)
}

func TestEthnicities(t *testing.T) {
	eth := DefaultEthnicities()

	tests := []struct {
		name      string
		ev        EthnicityEvidence
		want      int
		highLevel int
	}{
		{"census category", EthnicityEvidence{Eth2001: 9, NotStated: true}, 9, 3},
		{"white", EthnicityEvidence{Eth2001: 3}, 3, 1},
		{"mixed", EthnicityEvidence{Eth2001: 4}, 4, 2},
		{"black", EthnicityEvidence{Eth2001: 14}, 14, 4},
		{"other", EthnicityEvidence{Eth2001: 16}, 16, 5},
		{"other code", EthnicityEvidence{OtherCode: true, NotStated: true}, 17, 6},
		{"refused", EthnicityEvidence{NotGivenRefused: true, NotStated: true}, 18, 6},
		{"not stated", EthnicityEvidence{NotStated: true}, 19, 6},
		{"nothing", EthnicityEvidence{}, 20, 6},
		{"out of range census value", EthnicityEvidence{Eth2001: 17}, 20, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eth.Assign(tt.ev)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.highLevel, eth.HighLevel(got))
		})
	}

	assert.Equal(t, "Ethnicity not recorded", eth.Name(20))
	assert.Equal(t, "South Asian", eth.HighLevelName(3))
}
