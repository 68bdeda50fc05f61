package common

import (
	"gigbook/src/config"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePlatformFee(t *testing.T) {
	// A 2 hour booking at 80/hour: 160 total, 24 fee, 136 to the provider.
	total := ComputeTotalPrice(80, 2)
	fee := ComputePlatformFee(total, config.PLATFORM_FEE_RATE)

	assert.Equal(t, 160.0, total)
	assert.Equal(t, 24.0, fee)
	assert.Equal(t, 136.0, total-fee)
}

func TestComputePlatformFeeRounding(t *testing.T) {
	cases := []struct {
		amount float64
		fee    float64
	}{
		{33.33, 5.0}, // 4.9995 rounds up to the nearest cent
		{0.01, 0.0},  // 0.0015 rounds down
		{10.0, 1.5},
		{0, 0},
	}
	for _, c := range cases {
		assert.Equalf(t, c.fee, ComputePlatformFee(c.amount, config.PLATFORM_FEE_RATE), "amount %.2f", c.amount)
	}
}
