package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"run", "status"}, names)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	require.Equal(t, defaultConfigPath, flag.DefValue)
}

func TestStatusCommandPrintsRenderedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"space":"HQ","state":{"open":true}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := fmt.Sprintf(`{
  "platform": "telegram",
  "telegram": {"token": "123:abc"},
  "spaceapi": {"url": %q},
  "mqtt": {"broker": "tcp://localhost:1883"},
  "storage": {"driver": "none"}
}`, srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--config", path})
	require.NoError(t, root.Execute())
	require.Equal(t, "HQ is **open**\n", out.String())
}

func TestStatusCommandMissingConfig(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"status", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, root.Execute())
}
