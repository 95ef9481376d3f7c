package stream

import (
	"sync"
	"testing"
	"visionstream/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFrameCache_OverwritesWithLatest(t *testing.T) {
	var cache FrameCache

	_, ok := cache.Load()
	assert.False(t, ok)

	cache.Store(&model.Frame{Seq: 1})
	cache.Store(&model.Frame{Seq: 2})

	frame, ok := cache.Load()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), frame.Seq)
}

func TestFrameCache_ConcurrentReaders(t *testing.T) {
	var cache FrameCache
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 1000; i++ {
			cache.Store(&model.Frame{Seq: i, JPEG: []byte{byte(i)}})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if frame, ok := cache.Load(); ok {
					assert.Equal(t, byte(frame.Seq), frame.JPEG[0])
				}
			}
		}()
	}
	wg.Wait()
}
