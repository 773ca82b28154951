// Package mininggrp maintains the group of mining RPC handlers.
package mininggrp

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/platopia-network/platopia/business/web/errs"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
	"github.com/platopia-network/platopia/foundation/blockchain/state"
	"github.com/platopia-network/platopia/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of mining endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// GetWork returns the freshest candidate as the eth_getWork triple:
// header hash, seed hash and boundary.
func (h Handlers) GetWork(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sealHash, seedHash, boundary, err := h.State.GetWork()
	if err != nil {
		if errors.Is(err, state.ErrKeypoolEmpty) {
			return errs.NewTrustedWithCode(err, http.StatusConflict, errs.CodeWalletKeypoolEmpty)
		}
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}

	result := []string{
		"0x" + sealHash.BigHex(),
		"0x" + seedHash.BigHex(),
		"0x" + boundary.BigHex(),
	}
	return web.Respond(ctx, w, result, http.StatusOK)
}

// SubmitWork records an externally found solution for a handed-out work
// entry.
func (h Handlers) SubmitWork(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Nonce      string `json:"nonce" validate:"required"`
		HeaderHash string `json:"headerhash" validate:"required"`
		MixHash    string `json:"mixhash" validate:"required"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	nonce, err := hexutil.DecodeUint64(req.Nonce)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}
	sealHash, err := database.HashFromBigHex(req.HeaderHash)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}
	mixHash, err := database.HashFromBigHex(req.MixHash)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	accepted := h.State.SubmitWork(sealHash, nonce, mixHash)
	return web.Respond(ctx, w, accepted, http.StatusOK)
}

// SubmitHashRate records an externally reported hash rate.
func (h Handlers) SubmitHashRate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		HashRate string `json:"hashrate" validate:"required"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	rate, err := hexutil.DecodeUint64(req.HashRate)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	h.State.SubmitHashRate(float64(rate))
	return web.Respond(ctx, w, true, http.StatusOK)
}

// Generate mines blocks immediately to the wallet's reserve script.
func (h Handlers) Generate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Blocks   int    `json:"nblocks" validate:"required,gt=0"`
		MaxTries uint64 `json:"maxtries"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}
	if req.MaxTries == 0 {
		req.MaxTries = 1_000_000
	}

	hashes, err := h.State.Generate(ctx, req.Blocks, req.MaxTries)
	if err != nil {
		if errors.Is(err, state.ErrKeypoolEmpty) {
			return errs.NewTrustedWithCode(err, http.StatusConflict, errs.CodeWalletKeypoolEmpty)
		}
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}

	return web.Respond(ctx, w, hashesHex(hashes), http.StatusOK)
}

// GenerateToAddress mines blocks immediately to a fixed payout script.
// The script is provided hex encoded; address decoding lives with the
// wallet collaborator outside this core.
func (h Handlers) GenerateToAddress(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Blocks   int    `json:"nblocks" validate:"required,gt=0"`
		Script   string `json:"script" validate:"required"`
		MaxTries uint64 `json:"maxtries"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}
	if req.MaxTries == 0 {
		req.MaxTries = 1_000_000
	}

	script, err := hexutil.Decode(req.Script)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	hashes, err := h.State.GenerateToScript(ctx, req.Blocks, script, req.MaxTries)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}

	return web.Respond(ctx, w, hashesHex(hashes), http.StatusOK)
}

// Info returns mining related information.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := struct {
		Blocks        uint32  `json:"blocks"`
		PooledTx      int     `json:"pooledtx"`
		NetworkHashPS float64 `json:"networkhashps"`
		Mining        bool    `json:"mining"`
		Chain         string  `json:"chain"`
	}{
		Blocks:        h.State.Chain().Height(),
		PooledTx:      h.State.Mempool().Count(),
		NetworkHashPS: h.State.HashesPerSec(),
		Mining:        h.State.Miner().Mining(),
		Chain:         h.State.Params().Name,
	}
	return web.Respond(ctx, w, info, http.StatusOK)
}

// PrioritiseTransaction applies operator priority and fee deltas to a
// pooled transaction.
func (h Handlers) PrioritiseTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		TxID          string  `json:"txid" validate:"required"`
		PriorityDelta float64 `json:"priority_delta"`
		FeeDelta      int64   `json:"fee_delta"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	txID, err := database.HashFromHex(req.TxID)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	h.State.Mempool().PrioritiseTransaction(txID, req.PriorityDelta, money.Amount(req.FeeDelta))
	return web.Respond(ctx, w, true, http.StatusOK)
}

func hashesHex(hashes []database.Hash) []string {
	result := make([]string, len(hashes))
	for i, hash := range hashes {
		result[i] = hash.Hex()
	}
	return result
}
