package telegram

import (
	"context"
	"sync"
	"sync/atomic"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"
)

// Task 一条待处理的入站消息
type Task struct {
	Ctx     context.Context
	Event   models.Event
	Handler EventHandler
}

// PoolStats 工作池运行状态
type PoolStats struct {
	Workers       int   `json:"workers"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
}

// WorkerPool polling 模式下的消息处理池
type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	workers   int
	mu        sync.RWMutex
	closed    bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewWorkerPool 创建并启动工作池
// workers: worker 协程数量
// queueSize: 任务队列大小
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	pool := &WorkerPool{
		taskQueue: make(chan Task, queueSize),
		workers:   workers,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger.L().Debugf("Worker %d started", id)

	for task := range p.taskQueue {
		// Handler 通常已经包了 Recover，这里兜底
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.failed.Add(1)
					logger.WithChat(task.Event.ChatID).Errorf("Worker %d: handler panic recovered: %v", id, r)
				}
			}()

			if err := task.Handler(task.Ctx, task.Event); err != nil {
				p.failed.Add(1)
				logger.WithChat(task.Event.ChatID).Errorf("Worker %d: failed to handle message %d: %v", id, task.Event.MessageID, err)
				return
			}
			p.processed.Add(1)
		}()
	}

	logger.L().Debugf("Worker %d stopped", id)
}

// Submit 提交任务，队列已满或已关闭时丢弃并返回 false
func (p *WorkerPool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		logger.WithChat(task.Event.ChatID).Warnf("Worker pool is shut down, message %d dropped", task.Event.MessageID)
		return false
	}

	select {
	case p.taskQueue <- task:
		return true
	default:
		p.dropped.Add(1)
		logger.WithChat(task.Event.ChatID).Warnf("Worker pool queue is full, message %d dropped", task.Event.MessageID)
		return false
	}
}

// Stats 返回工作池状态
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		QueueLength:   len(p.taskQueue),
		QueueCapacity: cap(p.taskQueue),
		Processed:     p.processed.Load(),
		Failed:        p.failed.Load(),
		Dropped:       p.dropped.Load(),
	}
}

// Shutdown 停止接收新任务并等待队列中的任务处理完，可重复调用
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	logger.L().Info("Shutting down worker pool...")
	p.wg.Wait()
	logger.L().Info("Worker pool shut down successfully")
}
