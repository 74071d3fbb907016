package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"multisig-core/pkg/logger"
)

type Config struct {
	HttpPort string
	GrpcPort string
	// ShutdownTimeout 优雅关闭的等待上限，默认 5s
	ShutdownTimeout time.Duration
}

type App struct {
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcHealth   *health.Server
	grpcListener net.Listener
	shutdownWait time.Duration
}

func New(cfg Config, httpHandler http.Handler, grpcServer *grpc.Server, grpcHealth *health.Server) (*App, error) {
	// HTTP Server
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC Listener
	lis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GrpcPort, err)
	}

	wait := cfg.ShutdownTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}

	return &App{
		httpServer:   httpSrv,
		grpcServer:   grpcServer,
		grpcHealth:   grpcHealth,
		grpcListener: lis,
		shutdownWait: wait,
	}, nil
}

// Run 启动服务并阻塞，直到 ctx 被取消 (通常由 SIGINT/SIGTERM 触发) 或任一服务异常退出
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// 1. Start HTTP
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 2. Start gRPC
	go func() {
		logger.Info("Starting gRPC Server", zap.String("addr", a.grpcListener.Addr().String()))
		if err := a.grpcServer.Serve(a.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// 3. Wait
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case runErr = <-errCh:
		logger.Error("Server failure, shutting down", zap.Error(runErr))
	}

	// 4. Graceful Shutdown
	if a.grpcHealth != nil {
		a.grpcHealth.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownWait)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	a.grpcServer.GracefulStop()
	logger.Info("Server exited properly")
	return runErr
}
