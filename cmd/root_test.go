package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"sync", "fetch", "enrich", "reconcile", "snapshot", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "talent-sync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestSyncCommand_Flags(t *testing.T) {
	for _, name := range []string{"dry-run", "json"} {
		flag := syncCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "sync should have --%s flag", name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestEnrichCommand_LimitFlag(t *testing.T) {
	flag := enrichCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestReconcileCommand_DryRunFlag(t *testing.T) {
	require.NotNil(t, reconcileCmd.Flags().Lookup("dry-run"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSnapshotCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range snapshotCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"stats", "list", "show"} {
		assert.True(t, names[name], "snapshot should have subcommand %q", name)
	}

	for _, name := range []string{"status", "limit", "offset"} {
		assert.NotNil(t, snapshotListCmd.Flags().Lookup(name), "snapshot list should have --%s flag", name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	for _, name := range []string{"status", "command", "since", "limit"} {
		assert.NotNil(t, runsListCmd.Flags().Lookup(name), "runs list should have --%s flag", name)
	}
}
