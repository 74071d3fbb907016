package worker

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"multisig-core/internal/worker/tasks"
	"multisig-core/pkg/logger"
)

// Server 封装 Asynq Server (Worker)
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer 初始化 Worker Server
func NewServer(addr string, password string, db int, concurrency int, expirer tasks.Expirer) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: logger.NewAsynqLogger(),
		},
	)

	mux := asynq.NewServeMux()

	// 注册任务处理器
	mux.Handle(tasks.TypeExpireStale, tasks.NewExpireStaleHandler(expirer))

	return &Server{
		server: srv,
		mux:    mux,
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	if err := s.server.Start(s.mux); err != nil {
		logger.Error("Worker Server failed to start", zap.Error(err))
		return err
	}
	logger.Info("Worker Server started")
	return nil
}

// Stop 停止拉取新任务并等待进行中的任务完成
func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}
