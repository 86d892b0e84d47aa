package providers

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBreaker struct {
	calls int
}

func (b *countingBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	b.calls++
	return fn()
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCricsheetClient_Download(t *testing.T) {
	body := archive(t, map[string]string{
		"1001.json":        `{"info":{}}`,
		"nested/1002.JSON": `{"info":{}}`,
		"README.txt":       "readme",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(body)
	}))
	defer srv.Close()

	dest := t.TempDir()
	breaker := &countingBreaker{}
	client := NewCricsheetClient(srv.URL, 5*time.Second, 10, breaker, quietLogger())

	n, err := client.Download(context.Background(), dest)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, breaker.calls)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"1001.json", "1002.JSON"}, names)

	data, err := os.ReadFile(filepath.Join(dest, "1001.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"info":{}}`, string(data))
}

func TestCricsheetClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dest := t.TempDir()
	client := NewCricsheetClient(srv.URL, 5*time.Second, 10, nil, quietLogger())

	_, err := client.Download(context.Background(), dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCricsheetClient_NotAnArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client := NewCricsheetClient(srv.URL, 5*time.Second, 10, nil, quietLogger())
	_, err := client.Download(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "failed to open archive")
}

func TestCricsheetClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewCricsheetClient("http://127.0.0.1:0/unused.zip", time.Second, 10, nil, quietLogger())
	_, err := client.Download(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
