package mcp

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/pkg/metricskey"
)

const (
	// DefaultPort is the port the launched MCP server listens on.
	DefaultPort = 3333

	// DefaultStartTimeout bounds the wait for the server port to open.
	DefaultStartTimeout = 10 * time.Second

	portPollInterval = 100 * time.Millisecond
	stopGracePeriod  = 5 * time.Second
)

// LauncherConfig configures the npx launch of the optimization MCP server.
type LauncherConfig struct {
	// URL is the endpoint of an already running MCP server. When set, no
	// child process is launched and the other fields are ignored.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Package is the npx package spec.
	Package string `json:"package" yaml:"package"`
	// Port is the HTTP port to listen on.
	Port int `json:"port" yaml:"port"`
	// ExtraArgs are appended to the npx command line.
	ExtraArgs []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
	// StartTimeout bounds the wait for the server port to open.
	StartTimeout time.Duration `json:"start_timeout,omitempty" yaml:"start_timeout,omitempty"`
}

func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		Package: "github:ohtaman/remip-mcp",
		Port:    DefaultPort,
	}
}

// Launcher runs the MCP server as a child process in its own process group,
// so the server and any of its children can be terminated together.
type Launcher struct {
	cfg LauncherConfig
	cmd *exec.Cmd
}

func NewLauncher(cfg LauncherConfig) *Launcher {
	if cfg.Package == "" {
		cfg.Package = DefaultLauncherConfig().Package
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}
	return &Launcher{cfg: cfg}
}

// Endpoint returns the streamable HTTP URL of the server: the configured
// external URL, or the local endpoint of the launched process.
func (l *Launcher) Endpoint() string {
	if l.cfg.URL != "" {
		return l.cfg.URL
	}
	return fmt.Sprintf("http://localhost:%d/mcp/", l.cfg.Port)
}

// Start launches the server and waits for its port to open. With an external
// URL configured, Start is a no-op.
func (l *Launcher) Start(ctx context.Context) error {
	if l.cfg.URL != "" {
		logger.ContextKV(ctx, xlog.INFO, "status", "external_server", "url", l.cfg.URL)
		return nil
	}
	if l.cmd != nil {
		return errors.New("mcp server already started")
	}

	args := []string{
		"-y", l.cfg.Package,
		"--http",
		"--start-remip-server",
		"--port", fmt.Sprintf("%d", l.cfg.Port),
	}
	args = append(args, l.cfg.ExtraArgs...)

	cmd := exec.Command("npx", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		metricskey.StatsSolverLaunches.IncrCounter(1, "failed")
		return errors.WithMessage(err, "failed to start MCP server")
	}
	l.cmd = cmd

	logger.ContextKV(ctx, xlog.INFO,
		"status", "started",
		"pid", cmd.Process.Pid,
		"port", l.cfg.Port,
	)

	if err := WaitForPort(ctx, "localhost", l.cfg.Port, l.cfg.StartTimeout); err != nil {
		metricskey.StatsSolverLaunches.IncrCounter(1, "failed")
		stopErr := l.Stop()
		return errors.WithSecondaryError(err, stopErr)
	}
	metricskey.StatsSolverLaunches.IncrCounter(1, "succeeded")
	return nil
}

// Stop terminates the server process group, first with SIGTERM and after the
// grace period with SIGKILL.
func (l *Launcher) Stop() error {
	if l.cmd == nil || l.cmd.Process == nil {
		return nil
	}
	pid := l.cmd.Process.Pid
	defer func() {
		l.cmd = nil
	}()

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return errors.WithMessage(err, "failed to signal MCP server process group")
	}

	done := make(chan error, 1)
	go func() {
		done <- l.cmd.Wait()
	}()

	select {
	case <-done:
		logger.KV(xlog.INFO, "status", "stopped", "pid", pid)
		return nil
	case <-time.After(stopGracePeriod):
		logger.KV(xlog.WARNING, "status", "force_kill", "pid", pid)
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-done
		return nil
	}
}

// WaitForPort waits for the specified host:port to start listening.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, portPollInterval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(portPollInterval):
		}
	}
	return errors.Newf("MCP server failed to start on %s within %s", addr, timeout)
}
