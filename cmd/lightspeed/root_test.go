package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"serve", "worker", "jobs", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("debug"))
}

func TestWorkerHasResumeJobsFlag(t *testing.T) {
	flag := newWorkerCmd().Flags().Lookup("resume-jobs")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestJobsListFlagDefaults(t *testing.T) {
	cmd := newJobsListCmd()

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("status"))
}

func TestJobsListRejectsUnknownStatus(t *testing.T) {
	cmd := newJobsListCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--status", "bogus"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown status "bogus"`)
}

func TestJobsGetRejectsNonIntegerID(t *testing.T) {
	cmd := newJobsGetCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"abc"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid job id "abc"`)
}
