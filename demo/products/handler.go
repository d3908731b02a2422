// Package products is a small product catalog served over HTTP. Handlers
// report what they touched through the diag collector of the request.
package products

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tlog"
)

// PropProductName is the diagnostic property naming the product a request
// operated on
const PropProductName = "ProductName"

const maxNameLen = 32

// ErrInvalidProduct is reported for a malformed product in POST /products
var ErrInvalidProduct = errors.New("invalid product")

type errorResult struct {
	Error string `json:"error"`
}

// Register adds the catalog routes to the router
func Register(router *mux.Router, store *Store) {
	h := handler{store: store}

	router.Path("/products").Methods(http.MethodGet).HandlerFunc(h.list)
	router.Path("/products").Methods(http.MethodPost).HandlerFunc(h.add)
	router.Path("/products/{id}").Methods(http.MethodGet).HandlerFunc(h.get)
	router.Path("/products/{id}").Methods(http.MethodDelete).HandlerFunc(h.delete)
}

type handler struct {
	store *Store
}

func (h handler) list(w http.ResponseWriter, r *http.Request) {
	res := h.store.List()
	if res == nil {
		res = []Product{}
	}
	diag.Set(r.Context(), "ProductCount", len(res))
	thttp.JSONResult(tlog.Get(r.Context()), w, res, http.StatusOK)
}

func (h handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	diag.Set(r.Context(), PropProductName, p.Name)
	thttp.JSONResult(tlog.Get(r.Context()), w, p, http.StatusOK)
}

func (h handler) add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrInvalidProduct, err), http.StatusBadRequest)
		return
	}
	switch {
	case req.Name == "":
		h.fail(w, r, fmt.Errorf("%w: empty name", ErrInvalidProduct), http.StatusBadRequest)
		return
	case utf8.RuneCountInString(req.Name) > maxNameLen:
		h.fail(w, r, fmt.Errorf("%w: name longer than %d characters", ErrInvalidProduct, maxNameLen), http.StatusBadRequest)
		return
	case req.Price < 0:
		h.fail(w, r, fmt.Errorf("%w: negative price", ErrInvalidProduct), http.StatusBadRequest)
		return
	}

	p := h.store.Add(req.Name, req.Price)
	diag.Set(r.Context(), PropProductName, p.Name)
	thttp.JSONResult(tlog.Get(r.Context()), w, p, http.StatusCreated)
}

func (h handler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Delete(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	diag.Set(r.Context(), PropProductName, p.Name)
	w.WriteHeader(http.StatusNoContent)
}

// fail answers with the error and attaches it to the request log event
func (h handler) fail(w http.ResponseWriter, r *http.Request, err error, code int) {
	diag.SetError(r.Context(), err)
	thttp.JSONResult(tlog.Get(r.Context()), w, errorResult{Error: err.Error()}, code)
}
