package mcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WaitForPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		_ = ln.Close()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	err = WaitForPort(context.Background(), "127.0.0.1", port, time.Second)
	assert.NoError(t, err)
}

func Test_WaitForPort_Timeout(t *testing.T) {
	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = WaitForPort(context.Background(), "127.0.0.1", port, 300*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func Test_WaitForPort_ContextCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WaitForPort(ctx, "127.0.0.1", port, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Launcher_Defaults(t *testing.T) {
	l := NewLauncher(LauncherConfig{})
	assert.Equal(t, "http://localhost:3333/mcp/", l.Endpoint())
	assert.NoError(t, l.Stop())
}

func Test_Launcher_Endpoint(t *testing.T) {
	l := NewLauncher(LauncherConfig{Port: 4444})
	assert.Equal(t, "http://localhost:4444/mcp/", l.Endpoint())
}

func Test_Launcher_ExternalURL(t *testing.T) {
	l := NewLauncher(LauncherConfig{URL: "http://solver.internal:9000/mcp/"})
	assert.Equal(t, "http://solver.internal:9000/mcp/", l.Endpoint())

	// no child process is launched for an external server
	require.NoError(t, l.Start(context.Background()))
	assert.Nil(t, l.cmd)
	assert.NoError(t, l.Stop())
}
