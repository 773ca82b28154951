package money_test

import (
	"math/big"
	"testing"

	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// mainSchedule mirrors the main network issuance parameters.
func mainSchedule() money.Schedule {
	const blocksPerDay = 960
	return money.Schedule{
		BlocksPerDay:     blocksPerDay,
		DaysPerCentury:   300,
		BlocksPerCentury: blocksPerDay * 300,
		DecayNum:         9,
		DecayDen:         10,
		OldChainHeight:   1_440_000,
		OldChainInterest: 39_168_290_492_526_951,
		TotalInterest:    240_000_000_000_000_000,
		LockThresholds: [8]int32{
			16 * blocksPerDay, 32 * blocksPerDay, 64 * blocksPerDay,
			128 * blocksPerDay, 256 * blocksPerDay, 512 * blocksPerDay,
			1024 * blocksPerDay, 1024 * blocksPerDay,
		},
		LockRates: [7]float64{0.0142857, 0.0285714, 0.0428571, 0.0571428, 0.0714285, 0.0857142, 0.0999999},
	}
}

// initialSubsidy is the live chain's first-century subsidy: 921.1644 coins.
const initialSubsidy = money.Amount(92_116_440_000)

// decayedExact computes floor(base * (9/10)^k) independently of the
// schedule implementation.
func decayedExact(base money.Amount, k int32) money.Amount {
	e := big.NewInt(int64(k))
	v := new(big.Int).Mul(big.NewInt(int64(base)), new(big.Int).Exp(big.NewInt(9), e, nil))
	v.Quo(v, new(big.Int).Exp(big.NewInt(10), e, nil))
	return money.Amount(v.Int64())
}

func Test_SubsidyHalvings(t *testing.T) {
	s := mainSchedule()
	interval := s.BlocksPerCentury

	t.Log("Given the need to validate the per-century subsidy decay.")
	{
		if got := s.Subsidy(1); got != initialSubsidy {
			t.Fatalf("\t%s\tShould start at 921.1644 coins: got %d exp %d", failed, got, initialSubsidy)
		}
		t.Logf("\t%s\tShould start at 921.1644 coins.", success)

		for k := int32(0); k <= 240; k++ {
			got := s.Subsidy(k*interval + 1)
			if got > initialSubsidy {
				t.Fatalf("\t%s\tCentury %d:\tShould never exceed the initial subsidy: got %d", failed, k+1, got)
			}
			if exp := decayedExact(initialSubsidy, k); got != exp {
				t.Fatalf("\t%s\tCentury %d:\tShould match the exact decay: got %d exp %d", failed, k+1, got, exp)
			}
		}
		t.Logf("\t%s\tShould match the exact decay for 241 centuries.", success)

		for _, k := range []int32{241, 242, 250, 300} {
			if got := s.Subsidy(k * interval); got != 0 {
				t.Fatalf("\t%s\tShould be exhausted at century %d: got %d", failed, k, got)
			}
		}
		t.Logf("\t%s\tShould be exhausted after 241 centuries.", success)
	}
}

func Test_SubsidyLimit(t *testing.T) {
	s := mainSchedule()

	t.Log("Given the need to validate total issuance stays bounded.")
	{
		var sum money.Amount
		for height := int32(0); height < 14_000_000; height += 1000 {
			subsidy := s.Subsidy(height)
			if subsidy > initialSubsidy {
				t.Fatalf("\t%s\tHeight %d:\tShould stay under the initial subsidy: got %d", failed, height, subsidy)
			}
			sum += 1000 * subsidy
			if !sum.Valid() {
				t.Fatalf("\t%s\tHeight %d:\tShould stay in the monetary range: got %d", failed, height, sum)
			}
		}
		t.Logf("\t%s\tShould stay under the initial subsidy at every sample.", success)

		const expSum = money.Amount(263_802_041_678_005_000)
		if sum != expSum {
			t.Fatalf("\t%s\tShould issue exactly %d units: got %d", failed, expSum, sum)
		}
		t.Logf("\t%s\tShould issue exactly %d units.", success, expSum)
	}
}

func Test_GenesisEndowment(t *testing.T) {
	s := mainSchedule()

	t.Log("Given the need to validate the genesis endowment components.")
	{
		if got, exp := s.CumulativeSubsidy(0), money.Amount(499_200_000*money.COIN); got != exp {
			t.Fatalf("\t%s\tShould hold only the base endowment at height 0: got %d exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould hold only the base endowment at height 0.", success)

		if got, exp := s.CumulativeSubsidy(s.OldChainHeight), money.Amount(233_904_652_800_000_000); got != exp {
			t.Fatalf("\t%s\tShould accumulate the old chain issuance: got %d exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould accumulate the old chain issuance.", success)

		if got, exp := s.CenturyLottery(5), money.Amount(4_095_100_000_000_000); got != exp {
			t.Fatalf("\t%s\tShould accumulate five lottery centuries: got %d exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould accumulate five lottery centuries.", success)

		if got, exp := s.GenesisReward(), money.Amount(277_168_043_292_526_951); got != exp {
			t.Fatalf("\t%s\tShould credit the full genesis reward: got %d exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould credit the full genesis reward.", success)
	}
}

func Test_LockSchedule(t *testing.T) {
	s := mainSchedule()

	tt := []struct {
		name       string
		lockBlocks int32
		adjusted   int32
	}{
		{"below first tier", 100, 0},
		{"exactly first tier", 16 * 960, 16 * 960},
		{"between tiers", 100 * 960, 64 * 960},
		{"top tier", 5000 * 960, 1024 * 960},
	}

	t.Log("Given the need to validate lock threshold adjustment.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen locking for %d blocks.", testID, tst.lockBlocks)
			{
				if got := s.AdjustToLockThreshold(tst.lockBlocks); got != tst.adjusted {
					t.Errorf("\t%s\tTest %d:\tShould adjust to %d: got %d", failed, testID, tst.adjusted, got)
				} else {
					t.Logf("\t%s\tTest %d:\tShould adjust to %d.", success, testID, tst.adjusted)
				}
			}
		}
	}

	t.Log("Given the need to validate the rate table lookup.")
	{
		if got := s.InterestRate(0); got != 0.0142857 {
			t.Fatalf("\t%s\tShould find the first tier rate: got %v", failed, got)
		}
		t.Logf("\t%s\tShould find the first tier rate.", success)

		if got := s.InterestRate(7); got != 0 {
			t.Fatalf("\t%s\tShould return zero out of range: got %v", failed, got)
		}
		if got := s.InterestRate(-1); got != 0 {
			t.Fatalf("\t%s\tShould return zero out of range: got %v", failed, got)
		}
		t.Logf("\t%s\tShould return zero out of range.", success)
	}

	t.Log("Given the need to validate lock interest for a 16 day deposit.")
	{
		principal := money.Amount(123.456 * float64(money.COIN))
		lockBlocks := int32(16 * 960)

		exp := money.Amount(float64(principal) * 0.0142857 * float64(lockBlocks) / float64(960*100))
		if got := s.LockInterest(principal, lockBlocks); got != exp {
			t.Fatalf("\t%s\tShould earn the tier zero rate: got %d exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould earn the tier zero rate.", success)

		if got := s.LockInterest(principal, 10); got != 0 {
			t.Fatalf("\t%s\tShould earn nothing below the first tier: got %d", failed, got)
		}
		t.Logf("\t%s\tShould earn nothing below the first tier.", success)
	}
}
