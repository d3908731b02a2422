package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ridge/reqlog"
	"github.com/ridge/reqlog/demo/products"
	"github.com/ridge/reqlog/thttp"
)

type app struct {
	products   *products.Store
	logs       recentReader
	tail       http.Handler
	requestLog *reqlog.Middleware
	cors       func(http.Handler) http.Handler // thttp.CORS if nil
}

func (a app) handler() http.Handler {
	router := mux.NewRouter()
	products.Register(router, a.products)
	router.Path("/boom").Methods(http.MethodGet).HandlerFunc(boom)
	router.Path("/logs").Methods(http.MethodGet).Handler(logsHandler(a.logs))
	router.Path("/logs/tail").Methods(http.MethodGet).Handler(a.tail)

	cors := a.cors
	if cors == nil {
		cors = thttp.CORS
	}
	return thttp.Wrap(router, thttp.Recover, a.requestLog.Wrap, thttp.RequestID, cors)
}

// boom fails on purpose to show how faults are logged
func boom(w http.ResponseWriter, r *http.Request) {
	panic("boom")
}
