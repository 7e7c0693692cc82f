package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivFloorRoundsTowardZero(t *testing.T) {
	cases := []struct {
		name                    string
		amount, num, den, want int64
	}{
		{"exact", 1000, 1, 2, 500},
		{"truncated", 1000, 1, 3, 333},
		{"zero amount", 0, 7, 9, 0},
		{"large numerator", 7, 1000, 3, 2333},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MulDivFloor(sdkmath.NewInt(tc.amount), sdkmath.NewInt(tc.num), sdkmath.NewInt(tc.den))
			require.NoError(t, err)
			assert.Equal(t, sdkmath.NewInt(tc.want), got)
		})
	}
}

func TestMulDivFloorRejectsBadInput(t *testing.T) {
	_, err := MulDivFloor(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrZeroDivisor)

	_, err = MulDivFloor(sdkmath.NewInt(-1), sdkmath.NewInt(1), sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = MulDivFloor(sdkmath.Int{}, sdkmath.NewInt(1), sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrAmountNil)
}

func TestPctCut(t *testing.T) {
	// 5% of 1000 with the 1e6 denominator
	got, err := PctCut(sdkmath.NewInt(1000), 50_000)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(50), got)

	// 30% of 950
	got, err = PctCut(sdkmath.NewInt(950), 300_000)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(285), got)

	_, err = PctCut(sdkmath.NewInt(1000), 1_000_001)
	assert.ErrorIs(t, err, ErrPctOutOfRange)
}

func TestBpsCutDepositFee(t *testing.T) {
	// 10% deposit fee on 1000
	got, err := BpsCut(sdkmath.NewInt(1000), 100_000)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100), got)
}

func TestProRata(t *testing.T) {
	got, err := ProRata(sdkmath.NewInt(665), sdkmath.NewInt(1), sdkmath.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(221), got)

	_, err = ProRata(sdkmath.NewInt(10), sdkmath.NewInt(4), sdkmath.NewInt(3))
	require.Error(t, err)

	_, err = ProRata(sdkmath.NewInt(10), sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrZeroDivisor)
}

// The floor rule means a full pro-rata pass over all holders leaves a
// remainder strictly smaller than the share total.
func TestProRataDustIsBounded(t *testing.T) {
	amount := sdkmath.NewInt(1000)
	shares := []int64{1, 2, 4}
	total := sdkmath.NewInt(7)

	credited := sdkmath.ZeroInt()
	for _, s := range shares {
		cut, err := ProRata(amount, sdkmath.NewInt(s), total)
		require.NoError(t, err)
		credited = credited.Add(cut)
	}

	dust := amount.Sub(credited)
	assert.True(t, dust.GTE(sdkmath.ZeroInt()))
	assert.True(t, dust.LT(total), "dust %s must stay below share total %s", dust, total)
}
