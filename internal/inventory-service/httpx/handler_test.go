package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-saga/internal/inventory-service/app"
)

func serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(app.NewSeededCatalog())))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestProductRoutes(t *testing.T) {
	srv := serve(t)

	resp, body := call(t, http.MethodGet, srv.URL+"/api/product/prod_2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"prod_2","name":"USB-C cable","price":9.99}`, body)

	resp, body = call(t, http.MethodGet, srv.URL+"/api/product/prod_4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"price":null`)

	resp, _ = call(t, http.MethodGet, srv.URL+"/api/product/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInventoryRoutes(t *testing.T) {
	srv := serve(t)

	resp, body := call(t, http.MethodGet, srv.URL+"/api/inventory/product/prod_1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"productId":"prod_1","quantity":15}`, body)

	resp, _ = call(t, http.MethodPut, srv.URL+"/api/inventory/reduce", `{"productId":"prod_1","quantity":5}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, http.MethodPut, srv.URL+"/api/inventory/reduce", `{"productId":"prod_1","quantity":11}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, http.MethodPut, srv.URL+"/api/inventory/reduce", `{"productId":"nope","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, http.MethodPut, srv.URL+"/api/inventory/release", `{"productId":"prod_1","quantity":5}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = call(t, http.MethodGet, srv.URL+"/api/inventory/product/prod_1", "")
	assert.JSONEq(t, `{"productId":"prod_1","quantity":15}`, body)
}
