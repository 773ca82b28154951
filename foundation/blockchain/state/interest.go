package state

import (
	"errors"
	"fmt"

	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// interestCenturies is the number of centuries the interest distribution
// spans, matching the subsidy exhaustion horizon.
const interestCenturies = 240

// PeriodInfo describes the interest budget of the current distribution
// period: one interest interval of 100 block days.
type PeriodInfo struct {
	Total           money.Amount `json:"total"`
	Taken           money.Amount `json:"taken"`
	TakenPercentage string       `json:"takenPercentage"`
	Left            money.Amount `json:"left"`
	LeftPercentage  string       `json:"leftPercentage"`
}

// InterestInfo describes the chain-wide interest budget.
type InterestInfo struct {
	Total          money.Amount `json:"total"`
	Left           money.Amount `json:"left"`
	LeftPercentage string       `json:"leftPercentage"`
	CurrentPeriod  PeriodInfo   `json:"currentPeriod"`
}

// InterestInfo reports the distributed and remaining interest, overall and
// for the current period.
func (s *State) InterestInfo() (InterestInfo, error) {
	schedule := s.params.Schedule
	tipHeader, _ := s.chain.Tip()

	total := schedule.TotalInterest
	chainInterest := money.Amount(tipHeader.ChainInterest)
	left := total - chainInterest
	if left < 0 {
		left = 0
	}

	interval := uint32(schedule.InterestInterval())
	periodStart := tipHeader.Height - tipHeader.Height%interval

	startHeader := tipHeader
	if periodStart < tipHeader.Height {
		var err error
		startHeader, err = s.chain.HeaderAt(periodStart)
		if err != nil {
			return InterestInfo{}, fmt.Errorf("interest info: %w", err)
		}
	}
	taken := chainInterest - money.Amount(startHeader.ChainInterest)

	periods := int64(interestCenturies) * int64(schedule.BlocksPerCentury) / int64(interval)
	periodTotal := total / money.Amount(periods)
	periodLeft := periodTotal - taken
	if periodLeft < 0 {
		periodLeft = 0
	}

	takenPct := 0
	if periodTotal > 0 {
		takenPct = int(taken * 100 / periodTotal)
	}
	leftPct := int(float64(left) / float64(total) * 100)

	return InterestInfo{
		Total:          total,
		Left:           left,
		LeftPercentage: fmt.Sprintf("%d%%", leftPct),
		CurrentPeriod: PeriodInfo{
			Total:           periodTotal,
			Taken:           taken,
			TakenPercentage: fmt.Sprintf("%d%%", takenPct),
			Left:            periodLeft,
			LeftPercentage:  fmt.Sprintf("%d%%", 100-takenPct),
		},
	}, nil
}

// =============================================================================

// MyInterest sums the wallet's still-locked principal and accrued
// interest.
type MyInterest struct {
	LockedPrincipal money.Amount `json:"LockedPrincipal"`
	LockedInterest  money.Amount `json:"LockedInterest"`
}

// MyInterest reports the wallet's locked deposits.
func (s *State) MyInterest() (MyInterest, error) {
	if s.wallet == nil {
		return MyInterest{}, errors.New("no wallet available")
	}

	height := s.chain.Height()

	var result MyInterest
	for _, d := range s.wallet.Deposits() {
		if height-d.Height+1 <= d.LockTime {
			result.LockedPrincipal += d.Principal
			result.LockedInterest += d.Value - d.Principal
		}
	}
	return result, nil
}

// DepositStatus is one deposit in the interest list.
type DepositStatus struct {
	TxID                   string       `json:"txid"`
	Vout                   int          `json:"vout"`
	RemainBlocks           int32        `json:"remainBlocks,omitempty"`
	RemainDays             int32        `json:"remainDays,omitempty"`
	InterestRatePer100Days string       `json:"interestRatePer100Days"`
	Principal              money.Amount `json:"principal"`
	Interest               money.Amount `json:"interest"`
}

// InterestList groups the wallet's deposits into still-locked and
// finished.
type InterestList struct {
	LockedDeposit   []DepositStatus `json:"lockedDeposit"`
	FinishedDeposit []DepositStatus `json:"finishedDeposit"`
}

// InterestList reports every wallet deposit with its remaining lock and
// rate.
func (s *State) InterestList() (InterestList, error) {
	if s.wallet == nil {
		return InterestList{}, errors.New("no wallet available")
	}

	schedule := s.params.Schedule
	height := int32(s.chain.Height())

	result := InterestList{
		LockedDeposit:   []DepositStatus{},
		FinishedDeposit: []DepositStatus{},
	}
	for _, d := range s.wallet.Deposits() {
		remainBlocks := int32(d.LockTime) - (height - int32(d.Height) + 1) + 1
		remainDays := (remainBlocks + schedule.BlocksPerDay - 1) / schedule.BlocksPerDay

		item := DepositStatus{
			TxID:                   d.TxID.Hex(),
			Vout:                   d.Vout,
			InterestRatePer100Days: fmt.Sprintf("%.5f%%", schedule.RateForLock(int32(d.LockTime))*100),
			Principal:              d.Principal,
			Interest:               d.Value - d.Principal,
		}

		if remainBlocks <= 0 {
			result.FinishedDeposit = append(result.FinishedDeposit, item)
			continue
		}
		item.RemainBlocks = remainBlocks
		item.RemainDays = remainDays
		result.LockedDeposit = append(result.LockedDeposit, item)
	}
	return result, nil
}

// =============================================================================

// LockInterest quotes the adjusted lock time and the interest a deposit of
// the given principal earns over it.
func (s *State) LockInterest(lockDays int32, principal money.Amount) (lockTime int32, interest money.Amount, err error) {
	schedule := s.params.Schedule

	lockBlocks := lockDays * schedule.BlocksPerDay
	if lockBlocks <= 0 {
		return 0, 0, errors.New("locktime must be greater than zero")
	}
	if principal <= 0 {
		return 0, 0, errors.New("principal must be greater than zero")
	}

	interest = schedule.LockInterest(principal, lockBlocks)
	return schedule.AdjustToLockThreshold(lockBlocks), interest, nil
}
