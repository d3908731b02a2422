package thttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRecorderImplicitOK(t *testing.T) {
	sr := NewStatusRecorder(httptest.NewRecorder())
	require.False(t, sr.WroteHeader())
	require.Equal(t, http.StatusOK, sr.Status())

	_, err := sr.Write([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, sr.WroteHeader())
	assert.Equal(t, http.StatusOK, sr.Status())
	assert.EqualValues(t, 5, sr.Written())
}

func TestStatusRecorderExplicit(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)
	sr.WriteHeader(http.StatusNotFound)
	sr.WriteHeader(http.StatusOK) // superfluous, ignored by net/http too
	assert.Equal(t, http.StatusNotFound, sr.Status())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusRecorderFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)
	sr.Flush()
	assert.True(t, rec.Flushed)
	assert.True(t, sr.WroteHeader())
}

func TestStatusRecorderNoHijack(t *testing.T) {
	sr := NewStatusRecorder(httptest.NewRecorder())
	_, _, err := sr.Hijack()
	require.Error(t, err)
	require.IsType(t, &httptest.ResponseRecorder{}, sr.Unwrap())
}
