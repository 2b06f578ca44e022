package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ldsn-cm/ldsn/config"
	"github.com/ldsn-cm/ldsn/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Backend:    "memory",
			LedgerPath: filepath.Join(dir, "offline.jsonl"),
		},
		Diseases: []string{"rift valley fever"},
		Severity: map[string]int{"Sheep Pox": 1},
	}
	cfg.Service.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.Cluster.SetDefaults()
	cfg.Network.SetDefaults()
	cfg.API.SetDefaults()
	return cfg
}

func TestNewWiresEngine(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	// The taxonomy is seeded from the severity matrix plus config extras.
	require.True(t, svc.Triage.KnownDisease("anthrax"))
	require.True(t, svc.Triage.KnownDisease("rift valley fever"))

	// The corridor network seed registers every location in the cluster
	// registry, so the node reports healthy from the start.
	require.True(t, svc.Triage.Healthy())

	// Seeded epidemiological links pre-connect the Adamawa grazing grounds
	// with the Far North migration endpoints.
	group, err := svc.Triage.ClusterOf("Ngaoundéré")
	require.NoError(t, err)
	require.Contains(t, group.Members, "Maroua")
	require.Contains(t, group.Members, "Tibati")

	// That cluster is already HIGH risk, so reports inside it are boosted
	// one level.
	alert, err := svc.Triage.SubmitReport(context.Background(), model.FieldReport{
		Disease:    "foot and mouth disease",
		Location:   "Ngaoundéré",
		ReporterID: "chw-12",
		Mortality:  2,
	})
	require.NoError(t, err)
	require.True(t, alert.ClusterBoost)
	require.Equal(t, model.P1Critical, alert.Priority)

	// Configured severity overrides beat the national matrix.
	boosted, err := svc.Triage.SubmitReport(context.Background(), model.FieldReport{
		Disease:    "sheep pox",
		Location:   "Ngaoundéré",
		ReporterID: "chw-12",
		Mortality:  1,
	})
	require.NoError(t, err)
	require.Equal(t, model.P1Critical, boosted.Priority)

	r, err := svc.Triage.RouteBetween(context.Background(), "Ngaoundéré", "Maroua", true)
	require.NoError(t, err)
	require.Equal(t, []string{"Ngaoundéré", "Maroua"}, r.Path)
}
