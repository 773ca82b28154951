// Package interestgrp maintains the group of interest RPC handlers.
package interestgrp

import (
	"context"
	"net/http"

	"github.com/platopia-network/platopia/business/web/errs"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
	"github.com/platopia-network/platopia/foundation/blockchain/state"
	"github.com/platopia-network/platopia/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of interest endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Info returns the interest taken and remaining in the blockchain.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info, err := h.State.InterestInfo()
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}
	return web.Respond(ctx, w, info, http.StatusOK)
}

// Mine returns the wallet's locked principal and interest.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mine, err := h.State.MyInterest()
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}
	return web.Respond(ctx, w, mine, http.StatusOK)
}

// List returns every wallet deposit, locked and finished.
func (h Handlers) List(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	list, err := h.State.InterestList()
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusInternalServerError, errs.CodeInternalError)
	}
	return web.Respond(ctx, w, list, http.StatusOK)
}

// Lock quotes the adjusted lock time and interest for a deposit.
func (h Handlers) Lock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		LockDays  int32   `json:"lockdays" validate:"required,gt=0"`
		Principal float64 `json:"principal" validate:"required,gt=0"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	principal := money.Amount(req.Principal * float64(money.COIN))
	lockTime, interest, err := h.State.LockInterest(req.LockDays, principal)
	if err != nil {
		return errs.NewTrustedWithCode(err, http.StatusBadRequest, errs.CodeInvalidParameter)
	}

	resp := struct {
		LockTime int32        `json:"locktime"`
		Interest money.Amount `json:"interest"`
	}{
		LockTime: lockTime,
		Interest: interest,
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}
