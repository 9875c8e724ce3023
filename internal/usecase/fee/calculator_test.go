package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_FirstCloseChargesNothing(t *testing.T) {
	calc := NewHighWaterMark()

	// First close of a fund: no high-water-mark exists yet, and the
	// administration gate is shut. The close only sets the mark.
	result, err := calc.Compute(Input{
		ShareGross:               decimal.NewFromInt(750),
		PreviousHWM:              decimal.Zero,
		TotalShares:              decimal.NewFromInt(100),
		AdminFeePercentage:       decimal.NewFromInt(2),
		AdminFeeFrequency:        4,
		PerformanceFeePercentage: decimal.NewFromInt(20),
		BookAdministrationFee:    false,
	})

	require.NoError(t, err)
	assert.True(t, result.AdministrationFee.IsZero())
	assert.True(t, result.PerformanceFee.IsZero())
	assert.True(t, result.ShareNAV.Equal(decimal.NewFromInt(750)))
	assert.True(t, result.NewHWM.Equal(decimal.NewFromInt(750)))
}

func TestCompute_AdministrationFee(t *testing.T) {
	calc := NewHighWaterMark()

	// 2% yearly over 4 bookings: 0.5% of the gross share value per booking.
	// Gross 1000 -> 5 per share -> 500 total over 100 shares.
	result, err := calc.Compute(Input{
		ShareGross:            decimal.NewFromInt(1000),
		PreviousHWM:           decimal.NewFromInt(1200),
		TotalShares:           decimal.NewFromInt(100),
		AdminFeePercentage:    decimal.NewFromInt(2),
		AdminFeeFrequency:     4,
		BookAdministrationFee: true,
	})

	require.NoError(t, err)
	assert.True(t, result.AdministrationFeePerShare.Equal(decimal.NewFromInt(5)))
	assert.True(t, result.AdministrationFee.Equal(decimal.NewFromInt(500)))
	assert.True(t, result.PerformanceFee.IsZero())
	assert.True(t, result.ShareNAV.Equal(decimal.NewFromInt(995)))
}

func TestCompute_AdministrationFee_GateShut(t *testing.T) {
	calc := NewHighWaterMark()

	result, err := calc.Compute(Input{
		ShareGross:            decimal.NewFromInt(1000),
		TotalShares:           decimal.NewFromInt(100),
		AdminFeePercentage:    decimal.NewFromInt(2),
		AdminFeeFrequency:     4,
		BookAdministrationFee: false,
	})

	require.NoError(t, err)
	assert.True(t, result.AdministrationFee.IsZero())
	assert.True(t, result.ShareNAV.Equal(decimal.NewFromInt(1000)))
}

func TestCompute_PerformanceFee_AboveHWM(t *testing.T) {
	calc := NewHighWaterMark()

	// Gross 1200 against a mark of 1000: 20% of the 200 excess = 40 per
	// share, 4000 total over 100 shares. The mark ratchets to 1200.
	result, err := calc.Compute(Input{
		ShareGross:               decimal.NewFromInt(1200),
		PreviousHWM:              decimal.NewFromInt(1000),
		TotalShares:              decimal.NewFromInt(100),
		PerformanceFeePercentage: decimal.NewFromInt(20),
	})

	require.NoError(t, err)
	assert.True(t, result.PerformanceFeePerShare.Equal(decimal.NewFromInt(40)))
	assert.True(t, result.PerformanceFee.Equal(decimal.NewFromInt(4000)))
	assert.True(t, result.ShareNAV.Equal(decimal.NewFromInt(1160)))
	assert.True(t, result.NewHWM.Equal(decimal.NewFromInt(1200)))
}

func TestCompute_PerformanceFee_BelowHWM(t *testing.T) {
	calc := NewHighWaterMark()

	// Under water: no performance fee, and the mark never resets downward.
	result, err := calc.Compute(Input{
		ShareGross:               decimal.NewFromInt(800),
		PreviousHWM:              decimal.NewFromInt(1000),
		TotalShares:              decimal.NewFromInt(100),
		PerformanceFeePercentage: decimal.NewFromInt(20),
	})

	require.NoError(t, err)
	assert.True(t, result.PerformanceFee.IsZero())
	assert.True(t, result.NewHWM.Equal(decimal.NewFromInt(1000)))
}

func TestCompute_BothFees(t *testing.T) {
	calc := NewHighWaterMark()

	result, err := calc.Compute(Input{
		ShareGross:               decimal.NewFromInt(1200),
		PreviousHWM:              decimal.NewFromInt(1000),
		TotalShares:              decimal.NewFromInt(50),
		AdminFeePercentage:       decimal.NewFromInt(2),
		AdminFeeFrequency:        2,
		PerformanceFeePercentage: decimal.NewFromInt(20),
		BookAdministrationFee:    true,
	})

	require.NoError(t, err)
	// Admin: 1200 * 2% / 2 = 12 per share. Perf: (1200-1000) * 20% = 40.
	assert.True(t, result.AdministrationFeePerShare.Equal(decimal.NewFromInt(12)))
	assert.True(t, result.PerformanceFeePerShare.Equal(decimal.NewFromInt(40)))
	assert.True(t, result.ShareNAV.Equal(decimal.NewFromInt(1148)))
	assert.True(t, result.AdministrationFee.Equal(decimal.NewFromInt(600)))
	assert.True(t, result.PerformanceFee.Equal(decimal.NewFromInt(2000)))
}

func TestCompute_RejectsNegativeInputs(t *testing.T) {
	calc := NewHighWaterMark()

	_, err := calc.Compute(Input{ShareGross: decimal.NewFromInt(-1)})
	assert.Error(t, err)

	_, err = calc.Compute(Input{ShareGross: decimal.NewFromInt(1), TotalShares: decimal.NewFromInt(-1)})
	assert.Error(t, err)
}
