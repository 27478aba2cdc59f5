package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/pharmaguard/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  pharmaguard serve
  pharmaguard serve --port 9000 --static ./frontend/dist
  PHARMAGUARD_LLM_API_KEY=... pharmaguard serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().String("host", "", "Listen address (default from config: 0.0.0.0)")
	cmd.Flags().Int("port", 0, "Listen port (default from config: 8000)")
	cmd.Flags().String("static", "", "Directory of a frontend build to serve")
	_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.static_dir", cmd.Flags().Lookup("static"))

	return cmd
}

func runServe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := api.NewServer(a.orch, api.Options{
		Server:      a.cfg.Server,
		Version:     version,
		LLMProvider: a.llmProvider,
		StaticDir:   a.cfg.Server.StaticDir,
	}, a.logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting server",
		zap.String("addr", a.cfg.Server.Addr()),
		zap.String("knowledge_version", a.kb.Version()),
		zap.Bool("explanations", a.llmProvider != ""))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("stop requested", zap.Error(context.Cause(gctx)))
		return nil
	})
	return g.Wait()
}
