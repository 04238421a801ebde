package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_NotConfigured(t *testing.T) {
	_, err := executeCommand(t, Services{}, "", "mcp", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool registry not configured")
}

func TestMCPServeCmd_PortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}
