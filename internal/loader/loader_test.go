package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(name string) (Descriptor, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	if name == "broken" {
		return Descriptor{}, errors.New("unreadable")
	}
	return Descriptor{Path: "modules/" + name, Content: []byte("Files:\nlib/" + name + ".c\n")}, nil
}

func TestLoader_Load(t *testing.T) {
	f := newFakeFetcher()
	l := New(f, 3)

	jobs := []Job{{Name: "alloca"}, {Name: "broken"}, {Name: "stdbool"}}
	results, err := l.Load(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "alloca", results[0].Job.Name)
	assert.NoError(t, results[0].Error)
	assert.Equal(t, "modules/alloca", results[0].Descriptor.Path)

	assert.Equal(t, "broken", results[1].Job.Name)
	assert.Error(t, results[1].Error)

	assert.Equal(t, "stdbool", results[2].Job.Name)
	assert.Equal(t, "Files:\nlib/stdbool.c\n", string(results[2].Descriptor.Content))

	for _, job := range jobs {
		assert.Equal(t, 1, f.calls[job.Name], job.Name)
	}
}

func TestLoader_BoundedWorkers(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 5 * time.Millisecond
	l := New(f, 2)

	var jobs []Job
	for i := 0; i < 10; i++ {
		jobs = append(jobs, Job{Name: fmt.Sprintf("m%d", i)})
	}
	_, err := l.Load(context.Background(), jobs)
	require.NoError(t, err)

	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newFakeFetcher(), 1).Load(ctx, []Job{{Name: "alloca"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_DefaultWorkers(t *testing.T) {
	assert.Greater(t, New(newFakeFetcher(), 0).Workers(), 0)
}
