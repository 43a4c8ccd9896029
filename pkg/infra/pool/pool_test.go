package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("documents", DocumentPool, DocumentPoolConfig(3))
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "documents" {
		t.Errorf("池名称不匹配: 期望 documents, 实际 %s", p.Name())
	}
	if p.Type() != DocumentPool {
		t.Errorf("池类型不匹配: 期望 %s, 实际 %s", DocumentPool, p.Type())
	}
	if p.Cap() != 3 {
		t.Errorf("池容量不匹配: 期望 3, 实际 %d", p.Cap())
	}
}

func TestDocumentPoolConfigDefaultsToCPU(t *testing.T) {
	cfg := DocumentPoolConfig(0)
	if cfg.Capacity <= 0 {
		t.Errorf("默认容量应为 CPU 核数, 实际 %d", cfg.Capacity)
	}
}

func TestPoolSubmitAndWait(t *testing.T) {
	p, err := NewPool("test", DocumentPool, DocumentPoolConfig(4))
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	for i := 0; i < 50; i++ {
		if err := p.Submit(func() { counter.Add(1) }); err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
	}
	p.Wait()

	if counter.Load() != 50 {
		t.Errorf("任务执行数不匹配: 期望 50, 实际 %d", counter.Load())
	}
	if got := p.Stats().CompletedTasks; got != 50 {
		t.Errorf("完成任务数不匹配: 期望 50, 实际 %d", got)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p, err := NewPool("test", DocumentPool, DocumentPoolConfig(2))
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var running, peak atomic.Int32
	for i := 0; i < 10; i++ {
		_ = p.Submit(func() {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
	}
	p.Wait()

	if peak.Load() > 2 {
		t.Errorf("并发数超过容量: 峰值 %d", peak.Load())
	}
}

func TestPoolSubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("test", DocumentPool, DocumentPoolConfig(1))
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Bool
	if err := p.SubmitWithContext(ctx, func() { executed.Store(true) }); err == nil {
		t.Error("上下文已取消时应返回错误")
	}
	p.Wait()
	if executed.Load() {
		t.Error("上下文已取消的任务不应执行")
	}
}

func TestPoolPanicRecovered(t *testing.T) {
	var handled atomic.Bool
	cfg := DocumentPoolConfig(1)
	cfg.PanicHandler = func(interface{}) { handled.Store(true) }

	p, err := NewPool("test", DocumentPool, cfg)
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	_ = p.Submit(func() { panic("boom") })
	p.Wait()
	time.Sleep(10 * time.Millisecond)

	if !handled.Load() {
		t.Error("panic 应交给 PanicHandler 处理")
	}
	if p.Stats().PanicRecovered != 1 {
		t.Errorf("panic 计数不匹配: %d", p.Stats().PanicRecovered)
	}
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", DocumentPool, DocumentPoolConfig(1))
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	p.Release()

	if err := p.Submit(func() {}); err != ErrPoolClosed {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
}
