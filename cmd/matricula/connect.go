package main

import (
	"net/http"

	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/internal/server"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

// localBase is the base URL of the in-process server.
const localBase = "http://matricula.local"

// conn is how a command reaches the endpoints.
type conn struct {
	cfg    config.Config
	client *http.Client
}

// connect serves the endpoints from store in process unless remote is set,
// in which case the configured base URL is called.
func (a *app) connect(store catalog.Store, remote bool) (conn, error) {
	cfg := a.cfg
	if remote {
		return conn{cfg: cfg, client: &http.Client{Timeout: cfg.Client.Timeout}}, nil
	}
	if cfg.Client.Institution > 0 {
		cfg.Server.DefaultInstitution = cfg.Client.Institution
	}
	if cfg.Client.CSRFToken == "" {
		cfg.Client.CSRFToken = "local"
	}
	srv, err := server.New(cfg, store, server.WithLogger(a.logger))
	if err != nil {
		return conn{}, err
	}
	cfg.Client.BaseURL = localBase
	return conn{
		cfg:    cfg,
		client: &http.Client{Transport: server.InProcess(srv.Handler()), Timeout: cfg.Client.Timeout},
	}, nil
}
