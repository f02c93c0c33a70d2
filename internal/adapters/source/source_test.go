package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshifu/cyclemap/internal/adapters/source"
)

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"meta":{},"days":[]}`))
	}))
	defer srv.Close()

	src := source.New(srv.URL+"/trip.json", 5*time.Second)
	require.IsType(t, &source.HTTPSource{}, src)
	body, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"meta":{},"days":[]}`, string(body))

	_, err = source.NewHTTPSource(srv.URL+"/missing", time.Second).Fetch(context.Background())
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trip.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"meta":{},"days":[]}`), 0o644))

	src := source.New("file://"+path, time.Second)
	require.IsType(t, &source.FileSource{}, src)
	body, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	_, err = source.NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestNew_Empty(t *testing.T) {
	assert.Nil(t, source.New("", time.Second))
}
