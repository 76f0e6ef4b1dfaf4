package main

import (
	"os"
	"testing"

	"docweave/cmd"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestVersionDefault(t *testing.T) {
	require.Equal(t, "dev", version)
}

func TestVersionRoundTripsThroughSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	cmd.SetVersion(version)
	require.Equal(t, "1.2.3", cmd.GetVersion())
}
