package service

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"multisig-core/internal/worker/tasks"
	"multisig-core/pkg/logger"
	"multisig-core/pkg/utils/lock"
)

const expireLockKey = "cron:lock:expire_stale"

// TaskEnqueuer 由 worker.Client 实现
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CronService 周期性触发过期扫描。
// 配置了 asynq 时只负责投递任务，由 worker 执行；否则在本进程内直接执行。
type CronService struct {
	cron     *cron.Cron
	spec     string
	locker   lock.DistributedLock
	enqueuer TaskEnqueuer
	expirer  tasks.Expirer
	lockTTL  time.Duration
	log      *zap.Logger
}

// NewCronService enqueuer 可以为 nil
func NewCronService(spec string, locker lock.DistributedLock, enqueuer TaskEnqueuer, expirer tasks.Expirer) *CronService {
	return &CronService{
		cron:     cron.New(),
		spec:     spec,
		locker:   locker,
		enqueuer: enqueuer,
		expirer:  expirer,
		lockTTL:  30 * time.Second,
		log:      logger.Named("cron"),
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.ExpireStaleJob(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Cron Service started", zap.String("expire_spec", s.spec))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Cron Service stopped")
}

// ExpireStaleJob 多实例部署时只有拿到锁的实例执行
func (s *CronService) ExpireStaleJob(ctx context.Context) {
	// 1. 获取分布式锁
	token, locked, err := s.locker.Acquire(ctx, expireLockKey, s.lockTTL)
	if err != nil || !locked {
		s.log.Debug("ExpireStaleJob: 获取锁失败或已有实例在运行", zap.Error(err))
		return
	}
	defer func() {
		if err := s.locker.Release(context.Background(), expireLockKey, token); err != nil {
			s.log.Warn("ExpireStaleJob: 释放锁失败", zap.Error(err))
		}
	}()

	// 2. 投递给 worker
	if s.enqueuer != nil {
		task, err := tasks.NewExpireStaleTask(0, "cron")
		if err != nil {
			s.log.Error("ExpireStaleJob: 构造任务失败", zap.Error(err))
			return
		}
		info, err := s.enqueuer.Enqueue(ctx, task)
		if err != nil {
			// 同一窗口内已有任务时 asynq 返回 ErrDuplicateTask，属于正常情况
			if errors.Is(err, asynq.ErrDuplicateTask) {
				s.log.Debug("ExpireStaleJob: 已有待执行的扫描任务")
				return
			}
			s.log.Warn("ExpireStaleJob: 投递任务失败", zap.Error(err))
			return
		}
		s.log.Debug("ExpireStaleJob: 已投递", zap.String("task_id", info.ID))
		return
	}

	// 3. 本进程直接执行
	runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()
	n, ledger, err := tasks.RunExpire(runCtx, s.expirer, 0, "cron")
	if err != nil {
		s.log.Warn("ExpireStaleJob: 扫描失败", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("ExpireStaleJob: 完成", zap.Uint32("current_ledger", ledger), zap.Int64("expired", n))
	}
}
