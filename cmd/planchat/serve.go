package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/config"
	"github.com/ohtaman/planchat/mcp"
	"github.com/ohtaman/planchat/orchestrator"
	"github.com/ohtaman/planchat/pkg/llmfactory"
	"github.com/ohtaman/planchat/server"
	"github.com/ohtaman/planchat/service"
	"github.com/ohtaman/planchat/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "cmd")

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var cfgPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return errors.WithMessage(err, "failed to load configuration")
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cfg.Server.Addr == "" {
				cfg.Server.Addr = ":8080"
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "planchat.yaml", "configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")

	return cmd
}

func serve(ctx context.Context, cfg *config.Configuration) error {
	factory := llmfactory.New(&cfg.LLM)

	plannerModel, err := factory.AgentModel(orchestrator.AuthorPlanner)
	if err != nil {
		return errors.WithMessage(err, "failed to create planner model")
	}
	mentorModel, err := factory.AgentModel(orchestrator.AuthorMentor)
	if err != nil {
		return errors.WithMessage(err, "failed to create mentor model")
	}

	launcher := mcp.NewLauncher(cfg.Solver)
	if err := launcher.Start(ctx); err != nil {
		return errors.WithMessage(err, "failed to start optimization server")
	}
	defer func() {
		if err := launcher.Stop(); err != nil {
			logger.KV(xlog.ERROR, "reason", "stop solver", "err", err.Error())
		}
	}()

	session, err := mcp.Connect(ctx, launcher.Endpoint())
	if err != nil {
		return errors.WithMessage(err, "failed to connect to optimization server")
	}
	defer func() {
		_ = session.Close()
	}()

	toolset, err := mcp.NewToolset(ctx, session)
	if err != nil {
		return errors.WithMessage(err, "failed to load optimization tools")
	}

	var st store.EventStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.WithMessage(err, "failed to connect to Redis")
		}
		st = store.NewRedisStore(client, cfg.Redis.Prefix)
	} else {
		st = store.NewMemoryStore()
	}

	newLoop := func() (*orchestrator.Loop, error) {
		return orchestrator.NewLoop(orchestrator.Config{
			MaxIterations:         cfg.Agents.MaxIterations,
			MaxToolCalls:          cfg.Agents.MaxToolCalls,
			PlannerThinkingBudget: cfg.Agents.PlannerThinkingBudget,
			MentorThinkingBudget:  cfg.Agents.MentorThinkingBudget,
			PlannerModel:          plannerModel,
			MentorModel:           mentorModel,
			PlannerTools:          toolset.Tools(),
		})
	}

	svc := service.NewAgentService(st, newLoop)
	srv := server.New(cfg.Server, svc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.KV(xlog.INFO, "status", "shutting_down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return errors.WithMessage(err, "server failed")
		}
		return nil
	case <-ctx.Done():
		logger.KV(xlog.INFO, "status", "shutting_down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.KV(xlog.ERROR, "reason", "shutdown", "err", err.Error())
	}
	svc.Stop()
	return nil
}
