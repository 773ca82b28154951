// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/platopia-network/platopia/app/services/node/handlers/v1/chaingrp"
	"github.com/platopia-network/platopia/app/services/node/handlers/v1/interestgrp"
	"github.com/platopia-network/platopia/app/services/node/handlers/v1/mininggrp"
	"github.com/platopia-network/platopia/foundation/blockchain/state"
	"github.com/platopia-network/platopia/foundation/events"
	"github.com/platopia-network/platopia/foundation/web"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

const version = "v1"

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	mgh := mininggrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}
	app.Handle(http.MethodGet, version, "/mining/getwork", mgh.GetWork)
	app.Handle(http.MethodPost, version, "/mining/submitwork", mgh.SubmitWork)
	app.Handle(http.MethodPost, version, "/mining/submithashrate", mgh.SubmitHashRate)
	app.Handle(http.MethodPost, version, "/mining/generate", mgh.Generate)
	app.Handle(http.MethodPost, version, "/mining/generatetoaddress", mgh.GenerateToAddress)
	app.Handle(http.MethodGet, version, "/mining/info", mgh.Info)
	app.Handle(http.MethodPost, version, "/mining/prioritisetransaction", mgh.PrioritiseTransaction)

	igh := interestgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}
	app.Handle(http.MethodGet, version, "/interest/info", igh.Info)
	app.Handle(http.MethodGet, version, "/interest/mine", igh.Mine)
	app.Handle(http.MethodGet, version, "/interest/list", igh.List)
	app.Handle(http.MethodPost, version, "/interest/lock", igh.Lock)

	cgh := chaingrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}
	app.Handle(http.MethodGet, version, "/genesis", cgh.Genesis)
	app.Handle(http.MethodGet, version, "/tip", cgh.Tip)
	app.Handle(http.MethodGet, version, "/mempool", cgh.Mempool)
	app.Handle(http.MethodGet, version, "/events", cgh.Events)
}
