package money

import (
	"math/big"
)

// baseSubsidy is the per-block issuance of the first old-chain century,
// 1560 coins (4680 / 3).
const baseSubsidy = 1560 * COIN

// genesisEndowment is the fixed subsidy granted to the old chain's genesis.
const genesisEndowment = 499_200_000 * COIN

// lotteryBase is the per-century lottery issuance before decay.
const lotteryBase = 100_000 * COIN

// Schedule captures the issuance parameters of one network and exposes the
// pure functions of the monetary schedule. A Schedule is immutable after
// construction.
type Schedule struct {
	BlocksPerDay     int32
	DaysPerCentury   int32
	BlocksPerCentury int32

	// DecayNum/DecayDen express the per-century multiplicative decay as an
	// exact ratio (9/10). The schedule never touches floating point for
	// subsidy arithmetic: geometric factors are computed with big integers
	// so every platform produces identical results.
	DecayNum int64
	DecayDen int64

	// OldChainHeight is the height the predecessor chain reached before
	// this chain took over; the live subsidy continues its decay curve.
	OldChainHeight int32

	// OldChainInterest is the interest already distributed by the
	// predecessor chain, folded into the genesis endowment.
	OldChainInterest Amount

	TotalInterest Amount

	// LockThresholds holds the eight lock-duration tiers in blocks,
	// ascending. The last two tiers share a threshold.
	LockThresholds [8]int32

	// LockRates holds the per-100-block-day interest rate of each tier.
	LockRates [7]float64
}

// CenturyFor returns the 1-based century index of a block height. Height 0
// belongs to century 1.
func (s Schedule) CenturyFor(height int32) int32 {
	return (height-1)/s.BlocksPerCentury + 1
}

// decayed returns floor(base * (DecayNum/DecayDen)^k) computed exactly.
func (s Schedule) decayed(base Amount, k int32) Amount {
	if k <= 0 {
		return base
	}
	e := big.NewInt(int64(k))
	num := new(big.Int).Exp(big.NewInt(s.DecayNum), e, nil)
	den := new(big.Int).Exp(big.NewInt(s.DecayDen), e, nil)
	v := new(big.Int).Mul(big.NewInt(int64(base)), num)
	v.Quo(v, den)
	if !v.IsInt64() {
		return 0
	}
	return Amount(v.Int64())
}

// BlockReward is the live chain's first-century subsidy: the old-chain
// subsidy the block after OldChainHeight would have received.
func (s Schedule) BlockReward() Amount {
	return s.oldChainSubsidy(s.OldChainHeight + 1)
}

// Subsidy returns the block subsidy at the given height. The subsidy is
// constant within a century and decays geometrically between centuries,
// reaching zero once the decayed value truncates below one unit.
func (s Schedule) Subsidy(height int32) Amount {
	return s.decayed(s.BlockReward(), s.CenturyFor(height)-1)
}

// oldChainSubsidy is the per-block subsidy of the predecessor chain.
func (s Schedule) oldChainSubsidy(height int32) Amount {
	return s.decayed(baseSubsidy, s.CenturyFor(height)-1)
}

// CumulativeSubsidy returns the total old-chain issuance up to and
// including heightCap: the genesis endowment plus each complete or partial
// century's constant subsidy times its block count.
func (s Schedule) CumulativeSubsidy(heightCap int32) Amount {
	total := genesisEndowment

	centuries := heightCap / s.BlocksPerCentury
	for i := int32(0); i < centuries; i++ {
		total += s.oldChainSubsidy(i*s.BlocksPerCentury+1) * Amount(s.BlocksPerCentury)
	}
	if rem := heightCap % s.BlocksPerCentury; rem > 0 {
		total += s.oldChainSubsidy(centuries*s.BlocksPerCentury+1) * Amount(rem)
	}
	return total
}

// CenturyLottery returns the old-chain lottery endowment accumulated
// through the given century, scaled by the external distribution factor.
func (s Schedule) CenturyLottery(century int32) Amount {
	var lottery Amount
	for i := int32(1); i <= century; i++ {
		lottery += s.decayed(lotteryBase, i-1)
	}
	return lottery * 100
}

// GenesisReward is the endowment credited by the live chain's genesis
// coinbase: all old-chain subsidy, the interest it already paid out, and
// the lottery total of its completed centuries.
func (s Schedule) GenesisReward() Amount {
	return s.CumulativeSubsidy(s.OldChainHeight) +
		s.OldChainInterest +
		s.CenturyLottery(s.CenturyFor(s.OldChainHeight))
}

// InterestRate returns the per-100-block-day rate of a lock tier, or 0 for
// an out-of-range tier.
func (s Schedule) InterestRate(tier int) float64 {
	if tier < 0 || tier >= len(s.LockRates) {
		return 0
	}
	return s.LockRates[tier]
}

// AdjustToLockThreshold rounds a lock duration down to the largest tier
// threshold not exceeding it, or 0 when the duration is below every tier.
func (s Schedule) AdjustToLockThreshold(lockBlocks int32) int32 {
	for i := len(s.LockThresholds) - 1; i >= 0; i-- {
		if lockBlocks >= s.LockThresholds[i] {
			return s.LockThresholds[i]
		}
	}
	return 0
}

// lockTier maps an adjusted lock duration back to its rate tier.
func (s Schedule) lockTier(adjusted int32) int {
	for i, t := range s.LockThresholds {
		if t == adjusted {
			return i
		}
	}
	return -1
}

// RateForLock returns the rate tier a lock duration falls into after
// threshold adjustment.
func (s Schedule) RateForLock(lockBlocks int32) float64 {
	return s.InterestRate(s.lockTier(s.AdjustToLockThreshold(lockBlocks)))
}

// InterestInterval is the block span one rate unit covers: 100 block days.
func (s Schedule) InterestInterval() int32 {
	return s.BlocksPerDay * 100
}

// LockInterest returns the interest earned by locking principal for the
// given duration. The duration is first adjusted down to a tier threshold;
// the result truncates to whole units.
func (s Schedule) LockInterest(principal Amount, lockBlocks int32) Amount {
	adjusted := s.AdjustToLockThreshold(lockBlocks)
	if adjusted == 0 || principal <= 0 {
		return 0
	}
	rate := s.InterestRate(s.lockTier(adjusted))
	return Amount(float64(principal) * rate * float64(adjusted) / float64(s.InterestInterval()))
}
