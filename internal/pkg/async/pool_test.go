package async_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	pool := async.NewPool(3)

	var tasks []async.Task
	for i := 0; i < 10; i++ {
		i := i
		tasks = append(tasks, async.Task{
			Name: fmt.Sprintf("task-%d", i),
			Execute: func(ctx context.Context) (interface{}, error) {
				if i == 7 {
					return nil, errors.New("boom")
				}
				return i * i, nil
			},
		})
	}

	results := pool.Execute(context.Background(), tasks)
	require.Len(t, results, 10)
	assert.Equal(t, 9, results["task-3"].Data)
	assert.EqualError(t, results["task-7"].Err, "boom")

	// The pool can be reused
	again := pool.Execute(context.Background(), tasks[:2])
	assert.Len(t, again, 2)
}

func TestPoolExecuteCancelled(t *testing.T) {
	pool := async.NewPool(2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tasks := []async.Task{
		{Name: "fast", Execute: func(ctx context.Context) (interface{}, error) { return "ok", nil }},
		{Name: "slow", Execute: func(ctx context.Context) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}

	results := pool.Execute(ctx, tasks)
	assert.LessOrEqual(t, len(results), 2)
	if r, ok := results["fast"]; ok {
		assert.Equal(t, "ok", r.Data)
	}
}
