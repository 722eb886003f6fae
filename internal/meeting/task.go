package meeting

import "context"

// Task 后台任务的结果通道 / Task is the completion channel of a background job.
// Done closes once the value and error are final.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

func resolvedTask[T any](v T, err error) *Task[T] {
	t := newTask[T]()
	t.resolve(v, err)
	return t
}

func (t *Task[T]) resolve(v T, err error) {
	t.value, t.err = v, err
	close(t.done)
}

// Done is closed when the task finishes. A nil Task is always done.
func (t *Task[T]) Done() <-chan struct{} {
	if t == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

// Wait 阻塞直到任务完成或 ctx 结束 / Wait blocks until the task finishes or ctx ends
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if t == nil {
		return zero, nil
	}
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Result 非阻塞读取，ok 为 false 表示仍在运行
// Result reads without blocking; ok is false while the task still runs
func (t *Task[T]) Result() (value T, err error, ok bool) {
	if t == nil {
		return value, nil, true
	}
	select {
	case <-t.done:
		return t.value, t.err, true
	default:
		return value, nil, false
	}
}
