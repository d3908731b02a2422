package products

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/test"
	"github.com/ridge/reqlog/thttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(store *Store) http.Handler {
	router := mux.NewRouter()
	Register(router, store)
	return router
}

// do runs a request inside a diag scope and returns the response with what
// the handler collected
func do(ctx context.Context, h http.Handler, r *http.Request) (*http.Response, diag.Completion) {
	ctx, c := diag.Begin(ctx)
	defer c.Dispose()

	resp := thttp.TestCtx(ctx, h, r)
	completion, ok := c.TryComplete()
	if !ok {
		panic("diag scope completed twice")
	}
	return resp, completion
}

func property(props []eventlog.Property, name string) any {
	ev := eventlog.Event{Properties: props}
	v, _ := ev.Property(name)
	return v
}

func TestStore(t *testing.T) {
	s := NewStore()
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.Empty(t, s.List())

	pear := s.Add("pear", 2)
	apple := s.Add("Apple", 1.5)
	assert.NotEqual(t, pear.ID, apple.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), apple.Created)

	assert.Equal(t, []Product{apple, pear}, s.List())

	got, err := s.Get(pear.ID)
	require.NoError(t, err)
	assert.Equal(t, pear, got)

	deleted, err := s.Delete(pear.ID)
	require.NoError(t, err)
	assert.Equal(t, pear, deleted)

	_, err = s.Get(pear.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(pear.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []Product{apple}, s.List())
}

func TestAddAndGet(t *testing.T) {
	ctx := test.Context(t)
	store := NewStore()
	h := newHandler(store)

	resp, completion := do(ctx, h, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"Widget","price":9.5}`)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Widget", property(completion.Properties, PropProductName))
	assert.NoError(t, completion.Err)

	var created Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Widget", created.Name)
	assert.Equal(t, 9.5, created.Price)

	resp, completion = do(ctx, h, httptest.NewRequest(http.MethodGet, "/products/"+created.ID, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Widget", property(completion.Properties, PropProductName))
}

func TestList(t *testing.T) {
	ctx := test.Context(t)
	store := NewStore()
	store.Add("b", 1)
	store.Add("a", 2)

	resp, completion := do(ctx, newHandler(store), httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, property(completion.Properties, "ProductCount"))

	var list []Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
}

func TestListEmpty(t *testing.T) {
	resp, _ := do(test.Context(t), newHandler(NewStore()), httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestDelete(t *testing.T) {
	ctx := test.Context(t)
	store := NewStore()
	p := store.Add("Gadget", 3)
	h := newHandler(store)

	resp, completion := do(ctx, h, httptest.NewRequest(http.MethodDelete, "/products/"+p.ID, nil))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Gadget", property(completion.Properties, PropProductName))

	resp, completion = do(ctx, h, httptest.NewRequest(http.MethodDelete, "/products/"+p.ID, nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.ErrorIs(t, completion.Err, ErrNotFound)
	assert.Nil(t, property(completion.Properties, PropProductName))
}

func TestGetNotFound(t *testing.T) {
	resp, completion := do(test.Context(t), newHandler(NewStore()), httptest.NewRequest(http.MethodGet, "/products/nope", nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.ErrorIs(t, completion.Err, ErrNotFound)

	var res errorResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "product not found", res.Error)
}

func TestAddInvalid(t *testing.T) {
	ctx := test.Context(t)
	store := NewStore()
	h := newHandler(store)

	for _, body := range []string{
		`not json`,
		`{"price":1}`,
		`{"name":"` + strings.Repeat("x", maxNameLen+1) + `"}`,
		`{"name":"x","price":-1}`,
	} {
		resp, completion := do(ctx, h, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.ErrorIs(t, completion.Err, ErrInvalidProduct, body)
	}
	assert.Empty(t, store.List())
}

func TestMethodNotAllowed(t *testing.T) {
	resp, _ := do(test.Context(t), newHandler(NewStore()), httptest.NewRequest(http.MethodPut, "/products", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
