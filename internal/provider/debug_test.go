//go:build locationdebug

package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessGuard_DetectsConcurrentEntry(t *testing.T) {
	var g accessGuard
	var wg sync.WaitGroup

	release := g.enter()
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.Panics(t, func() { g.enter() })
	}()
	wg.Wait()
	release()

	assert.NotPanics(t, func() { g.enter()() })
}

func TestAccessGuard_AllowsReentryFromOwner(t *testing.T) {
	var g accessGuard

	assert.NotPanics(t, func() {
		outer := g.enter()
		inner := g.enter()
		inner()
		outer()
	})
	assert.Equal(t, int64(0), g.owner.Load())

	// Once released, another goroutine may enter
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NotPanics(t, func() { g.enter()() })
	}()
	<-done
}
