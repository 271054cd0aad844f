package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFeeSplit_Outside(t *testing.T) {
	bd, err := FeeSplit(true, 1_000_000, 1_000, 0, 200_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bd.Protocol)
	assert.Equal(t, uint64(800), bd.Liquidity)
	assert.Equal(t, uint64(0), bd.Tip)
	assert.Equal(t, uint64(1_000), bd.Total())
}

func TestFeeSplit_InsideMatchesOutsideOnNet(t *testing.T) {
	// An inside fee on the gross amount equals the outside fee on the
	// net amount: 1_001_000 gross at 0.1% embedded is the 1_000 fee that
	// 1_000_000 net carries on top.
	inside, err := FeeSplit(false, 1_001_000, 1_000, 0, 200_000, 0)
	require.NoError(t, err)
	outside, err := FeeSplit(true, 1_000_000, 1_000, 0, 200_000, 0)
	require.NoError(t, err)
	assert.Equal(t, outside.Total(), inside.Total())
}

func TestFeeSplit_Discount(t *testing.T) {
	t.Run("half discount halves protocol and liquidity", func(t *testing.T) {
		bd, err := FeeSplit(true, 1_000_000, 1_000, 500_000, 200_000, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bd.Protocol)
		assert.Equal(t, uint64(400), bd.Liquidity)
	})

	t.Run("full discount zeroes the fee but not the tip", func(t *testing.T) {
		bd, err := FeeSplit(true, 1_000_000, 1_000, FeeScale, 200_000, 50_000)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), bd.Protocol)
		assert.Equal(t, uint64(0), bd.Liquidity)
		assert.Equal(t, uint64(50_000), bd.Tip)
	})
}

func TestFeeSplit_DiscountConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outside := rapid.Bool().Draw(t, "outside")
		amount := rapid.Uint64Range(0, 1<<62).Draw(t, "amount")
		rate := rapid.Uint64Range(0, FeeScale).Draw(t, "rate")
		discount := rapid.Uint64Range(0, FeeScale).Draw(t, "discount")
		share := rapid.Uint64Range(0, FeeScale).Draw(t, "share")
		referral := rapid.Uint64Range(0, FeeScale).Draw(t, "referral")

		got, err := FeeSplit(outside, amount, rate, discount, share, referral)
		if err != nil {
			t.Fatal(err)
		}
		full, err := FeeSplit(outside, amount, rate, 0, share, referral)
		if err != nil {
			t.Fatal(err)
		}

		// The undiscounted split recombines to the raw fee exactly;
		// protocol plus liquidity under a discount is that fee scaled
		// once, so the split itself loses nothing.
		raw := full.Protocol + full.Liquidity
		want := mulDivU64(raw, FeeScale-discount, FeeScale)
		if sum := got.Protocol + got.Liquidity; sum != want {
			t.Fatalf("protocol %d + liquidity %d = %d, want discounted fee %d",
				got.Protocol, got.Liquidity, sum, want)
		}
		// A discount can only shrink the levy.
		if got.Protocol+got.Liquidity > raw {
			t.Fatalf("discounted fee %d above raw fee %d",
				got.Protocol+got.Liquidity, raw)
		}
		// The tip rides outside the discount.
		if got.Tip != full.Tip {
			t.Fatalf("tip %d changed by discount, want %d", got.Tip, full.Tip)
		}
		if got.Total() > full.Total() {
			t.Fatalf("total %d above undiscounted total %d", got.Total(), full.Total())
		}
	})
}

func TestFeeSplit_RateValidation(t *testing.T) {
	cases := []struct {
		name                                        string
		rate, discount, protocolShare, referralRate uint64
	}{
		{"rate over scale", FeeScale + 1, 0, 0, 0},
		{"discount over scale", 0, FeeScale + 1, 0, 0},
		{"protocol share over scale", 0, 0, FeeScale + 1, 0},
		{"referral over scale", 0, 0, 0, FeeScale + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FeeSplit(true, 1, tc.rate, tc.discount, tc.protocolShare, tc.referralRate)
			assert.Error(t, err)
		})
	}
}

func TestDiscountFactor(t *testing.T) {
	got, err := DiscountFactor(500, 1_000)
	require.NoError(t, err)
	assert.Equal(t, FeeScale/2, got)

	got, err = DiscountFactor(1_000, 1_000)
	require.NoError(t, err)
	assert.Equal(t, FeeScale, got)

	got, err = DiscountFactor(0, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	_, err = DiscountFactor(1_001, 1_000)
	assert.Error(t, err, "balance above unit must be rejected")

	_, err = DiscountFactor(1, 0)
	assert.Error(t, err, "zero unit must be rejected")
}
