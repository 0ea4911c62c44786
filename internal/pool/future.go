package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTaskPanicked 任务执行时发生 panic
var ErrTaskPanicked = errors.New("task panicked")

// Future 异步任务结果句柄
//
// 任务完成后结果只写入一次，之后的 Wait/Poll 返回同一结果。
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	value     T
	err       error
	callbacks []func(T, error)
}

// newFuture 创建未完成的句柄
func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go 在协程池中执行 fn 并返回结果句柄
//
// 队列已满或协程池已停止时返回错误，fn 不会被执行。
func Go[T any](p *WorkerPool, fn func() (T, error)) (*Future[T], error) {
	f := newFuture[T]()
	err := p.TrySubmit(func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.resolve(zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
				panic(r)
			}
			f.resolve(value, err)
		}()
		value, err = fn()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Done 任务完成时关闭
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait 等待任务完成
//
// ctx 只限制等待时间，不会取消任务本身。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll 非阻塞获取结果，ok 为 false 表示任务尚未完成
func (f *Future[T]) Poll() (value T, err error, ok bool) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Then 注册完成回调，任务已完成时立即在当前协程执行
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		value, err := f.value, f.err
		f.mu.Unlock()
		fn(value, err)
	default:
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
	}
}

// resolve 写入结果并触发回调，仅第一次调用生效
func (f *Future[T]) resolve(value T, err error) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return
	default:
	}
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
}

// Resolved 返回已完成的句柄
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, err)
	return f
}
