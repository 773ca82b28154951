// Package chaingrp maintains the group of chain and event handlers.
package chaingrp

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/platopia-network/platopia/foundation/blockchain/state"
	"github.com/platopia-network/platopia/foundation/events"
	"github.com/platopia-network/platopia/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Genesis returns the genesis block information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	genesis := h.State.Genesis()

	resp := struct {
		Hash          string `json:"hash"`
		MerkleRoot    string `json:"merkle_root"`
		Height        uint32 `json:"height"`
		Time          uint32 `json:"time"`
		Bits          uint32 `json:"bits"`
		Nonce         uint64 `json:"nonce"`
		ChainInterest uint64 `json:"chain_interest"`
	}{
		Hash:          genesis.Hash().Hex(),
		MerkleRoot:    genesis.Header.MerkleRoot.Hex(),
		Height:        genesis.Header.Height,
		Time:          genesis.Header.Time,
		Bits:          genesis.Header.Bits,
		Nonce:         genesis.Header.Nonce,
		ChainInterest: genesis.Header.ChainInterest,
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Tip returns the chain tip summary.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	header, hash := h.State.Chain().Tip()

	resp := struct {
		Hash          string `json:"hash"`
		Height        uint32 `json:"height"`
		Time          uint32 `json:"time"`
		Bits          uint32 `json:"bits"`
		ChainInterest uint64 `json:"chain_interest"`
	}{
		Hash:          hash.Hex(),
		Height:        header.Height,
		Time:          header.Time,
		Bits:          header.Bits,
		ChainInterest: header.ChainInterest,
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the pool size.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Count int `json:"count"`
	}{
		Count: h.State.Mempool().Count(),
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
