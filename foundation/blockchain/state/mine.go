package state

import (
	"context"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
)

// StartMining launches the background mining pipeline.
func (s *State) StartMining(nThreads int) {
	s.miner.Start(nThreads)
}

// StopMining stops the background mining pipeline.
func (s *State) StopMining() {
	s.miner.Stop()
}

// Generate mines n blocks synchronously, paying the wallet's reserve
// script and keeping it once a block is accepted.
func (s *State) Generate(ctx context.Context, n int, maxTries uint64) ([]database.Hash, error) {
	provider, err := s.ReserveScript()
	if err != nil {
		return nil, err
	}
	return s.miner.MineBlocks(ctx, provider, n, maxTries, true)
}

// GenerateToScript mines n blocks synchronously paying a fixed script.
func (s *State) GenerateToScript(ctx context.Context, n int, script []byte, maxTries uint64) ([]database.Hash, error) {
	return s.miner.MineBlocks(ctx, StaticScript(script), n, maxTries, false)
}

// GetWork returns the freshest candidate for the pool protocol.
func (s *State) GetWork() (sealHash, seedHash, boundary database.Hash, err error) {
	provider, err := s.ReserveScript()
	if err != nil {
		return database.Hash{}, database.Hash{}, database.Hash{}, err
	}

	work, err := s.miner.GetWork(provider)
	if err != nil {
		return database.Hash{}, database.Hash{}, database.Hash{}, err
	}
	return work.SealHash, s.miner.SeedHash(work.Height), work.Boundary, nil
}

// SubmitWork records an externally found solution.
func (s *State) SubmitWork(sealHash database.Hash, nonce uint64, mixHash database.Hash) bool {
	return s.miner.SubmitWork(sealHash, nonce, mixHash)
}

// SubmitHashRate records an externally reported hash rate.
func (s *State) SubmitHashRate(rate float64) {
	s.miner.SetHashRate(rate)
}

// HashesPerSec estimates the mining pool's hash rate.
func (s *State) HashesPerSec() float64 {
	return s.miner.HashesPerSec()
}
