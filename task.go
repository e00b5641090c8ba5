package websock

import (
	"sync"

	"github.com/eapache/queue"
)

type (
	workerQueue struct {
		mu             sync.Mutex   // 锁
		q              *queue.Queue // 任务队列
		maxConcurrency int32        // 最大并发
		curConcurrency int32        // 当前并发
	}

	asyncJob func()
)

// newWorkerQueue 创建一个任务队列
func newWorkerQueue(maxConcurrency int32) *workerQueue {
	return &workerQueue{
		q:              queue.New(),
		maxConcurrency: maxConcurrency,
	}
}

// 获取一个任务
func (c *workerQueue) getJob(delta int32) asyncJob {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.curConcurrency += delta
	if c.curConcurrency >= c.maxConcurrency {
		return nil
	}
	if c.q.Length() == 0 {
		return nil
	}
	c.curConcurrency++
	return c.q.Remove().(asyncJob)
}

// 循环执行任务
func (c *workerQueue) do(job asyncJob) {
	for job != nil {
		job()
		job = c.getJob(-1)
	}
}

// Push 追加任务, 有资源空闲的话会立即执行
func (c *workerQueue) Push(job asyncJob) {
	c.mu.Lock()
	c.q.Add(job)
	c.mu.Unlock()
	if job := c.getJob(0); job != nil {
		go c.do(job)
	}
}

// Len 排队中的任务数量
func (c *workerQueue) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Length()
}
