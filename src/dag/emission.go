package dag

import (
	"fmt"
)

// Emission defaults.
const (
	DefaultInitialReward   uint64 = 5000000000
	DefaultHalvingInterval uint64 = 4 * 365 * 24 * 3600
	DefaultGenesisTime     uint64 = 1735689600
)

// Emission is a halving block-reward schedule starting at GenesisTime.
type Emission struct {
	InitialReward   uint64
	HalvingInterval uint64
	GenesisTime     uint64
}

// DefaultEmission returns the schedule used when none is configured.
func DefaultEmission() *Emission {
	return &Emission{
		InitialReward:   DefaultInitialReward,
		HalvingInterval: DefaultHalvingInterval,
		GenesisTime:     DefaultGenesisTime,
	}
}

// CalculateReward returns the reward for a coinbase stamped at timestamp.
func (e *Emission) CalculateReward(timestamp uint64) (uint64, error) {
	if timestamp < e.GenesisTime {
		return 0, fmt.Errorf("timestamp %d precedes genesis %d", timestamp, e.GenesisTime)
	}
	if e.HalvingInterval == 0 {
		return e.InitialReward, nil
	}
	halvings := (timestamp - e.GenesisTime) / e.HalvingInterval
	if halvings >= 64 {
		return 0, nil
	}
	return e.InitialReward >> halvings, nil
}
