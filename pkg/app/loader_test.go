package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	data []byte
}

func (l *staticLoader) Load(_ *url.URL) ([]byte, error) {
	return l.data, nil
}

func TestLoadFile_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	data, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = LoadFile("file://" + path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadFile_Schemes(t *testing.T) {
	_, err := LoadFile("unknown://bucket/key")
	assert.Error(t, err)

	RegisterFileLoaderCtor("static", func() (FileLoader, error) {
		return &staticLoader{data: []byte("static")}, nil
	})

	data, err := LoadFile("static://anything")
	require.NoError(t, err)
	assert.Equal(t, []byte("static"), data)

	assert.Panics(t, func() {
		RegisterFileLoaderCtor("static", newLocalLoader)
	})
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	o := &opts{}
	for _, option := range []Option{WithMiddleware(tag("first")), WithMiddleware(tag("second"))} {
		option(o)
	}

	handler := o.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, recorder.Code)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}
