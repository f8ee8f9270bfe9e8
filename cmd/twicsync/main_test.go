package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtures = "../../pkg/ingest/testdata"

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fixtures, name))
	require.NoError(t, err)
	return data
}

// archiveServer serves archive 1600 the way the publisher lays it out.
func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("twic1600.pgn")
	require.NoError(t, err)
	_, err = w.Write(fixture(t, "twic1600.pgn"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	index := fixture(t, "twic1600.html")
	mux := http.NewServeMux()
	mux.HandleFunc("/html/twic1600.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})
	mux.HandleFunc("/zips/twic1600g.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	table, err := filepath.Abs(filepath.Join(fixtures, "time_controls.csv"))
	require.NoError(t, err)

	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "twicsync.yaml")
	cfg := fmt.Sprintf("base_url: %s\ndb_path: %s\ntime_controls: %s\nworkers: 2\nretries: 0\n",
		baseURL, filepath.Join(dir, "games.db"), table)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunAndStats(t *testing.T) {
	srv := archiveServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfg, "run", "--from", "1600", "--to", "1600")
	require.NoError(t, err, out)
	assert.Contains(t, out, "archive 1600: done games=5 stored=5 matched=4 fallback=0 unmatched=1")

	out, err = execute(t, "--config", cfg, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Standard")
	assert.Regexp(t, `total\s+5`, out)

	out, err = execute(t, "--config", cfg, "run", "--from", "1600", "--to", "1600")
	require.NoError(t, err, out)
	assert.Contains(t, out, "archive 1600: skipped")
}

func TestRunReportsFailedArchives(t *testing.T) {
	srv := archiveServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfg, "run", "--from", "1600", "--to", "1601")
	assert.True(t, errors.Is(err, errArchivesFailed), "got %v", err)
	assert.Contains(t, out, "archive 1600: done")
	assert.Contains(t, out, "archive 1601: failed")
}

func TestInspect(t *testing.T) {
	srv := archiveServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfg, "inspect", "1600")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Norway Chess 2023")
	assert.Contains(t, out, "no sections: Titled Tuesday")
	assert.Regexp(t, `Standard\s+3`, out)
	assert.Regexp(t, `Blitz\s+1`, out)

	_, err = os.Stat(filepath.Join(filepath.Dir(cfg), "games.db"))
	assert.True(t, os.IsNotExist(err), "inspect must not create the database")
}

func TestInvalidArguments(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	_, err := execute(t, "--config", cfg, "run", "--from", "10", "--to", "5")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "inspect", "abc")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
