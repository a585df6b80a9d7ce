package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/testutil"
)

func execute(t *testing.T, cat *testutil.Catalog, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append(args, "--url", cat.URL()))
	err := cmd.Execute()
	return out.String(), err
}

func executeWithStderr(t *testing.T, cat *testutil.Catalog, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--url", cat.URL()))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func seedDevice(t *testing.T, cat *testutil.Catalog) {
	t.Helper()
	_, err := cat.Store.Create(catalog.Devices, catalog.Document{
		"id":                12,
		"name":              "dht11-north",
		"endpoints":         []any{"MQTT"},
		"endpoints_details": []any{map[string]any{"topic": "greenhouse/1/12"}},
		"greenhouse":        "1",
		"resources":         []any{"temperature"},
	})
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	cat := testutil.NewCatalog(t)

	out, err := execute(t, cat, "list", "devices")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, out)

	seedDevice(t, cat)
	out, err = execute(t, cat, "list", "device")
	require.NoError(t, err)

	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	require.Equal(t, "dht11-north", recs[0]["name"])
}

func TestGet(t *testing.T) {
	cat := testutil.NewCatalog(t)
	seedDevice(t, cat)

	out, err := execute(t, cat, "get", "devices", "name=dht11-north")
	require.NoError(t, err)
	require.Contains(t, out, `"id": 12`)

	_, err = execute(t, cat, "get", "devices", "name=missing")
	require.Error(t, err)

	_, err = execute(t, cat, "get", "devices", "plant_id=3")
	require.Error(t, err, "plant_id is not searchable on devices")

	_, err = execute(t, cat, "get", "devices", "name")
	require.Error(t, err)
}

func TestNewID(t *testing.T) {
	cat := testutil.NewCatalog(t)

	first, err := execute(t, cat, "new-id", "services")
	require.NoError(t, err)
	second, err := execute(t, cat, "new-id", "services")
	require.NoError(t, err)
	require.NotEqual(t, strings.TrimSpace(first), strings.TrimSpace(second))
}

func TestSlots(t *testing.T) {
	cat := testutil.NewCatalog(t)

	out, err := execute(t, cat, "broker")
	require.NoError(t, err)
	require.JSONEq(t, `{}`, out)

	require.NoError(t, cat.Store.WriteSingleton(catalog.DeviceCatalog, catalog.Document{"ip": "10.0.0.4", "port": 8082}, catalog.ModeCreate))
	out, err = execute(t, cat, "device-catalog")
	require.NoError(t, err)
	require.Contains(t, out, `"ip": "10.0.0.4"`)
}

func TestUnknownCollection(t *testing.T) {
	cat := testutil.NewCatalog(t)

	_, err := execute(t, cat, "list", "plants")
	require.ErrorContains(t, err, "unknown collection")
}

func TestLogLevelFlag(t *testing.T) {
	cat := testutil.NewCatalog(t)

	_, stderr, err := executeWithStderr(t, cat, "list", "devices", "--log-level", "debug")
	require.NoError(t, err)
	require.Contains(t, stderr, "using catalog")
	require.Contains(t, stderr, "service=catalogctl")

	_, stderr, err = executeWithStderr(t, cat, "list", "devices")
	require.NoError(t, err)
	require.NotContains(t, stderr, "using catalog")

	_, _, err = executeWithStderr(t, cat, "list", "devices", "--log-level", "chatty")
	require.ErrorIs(t, err, logging.ErrUnknownLevel)
}
