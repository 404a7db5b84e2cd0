package rendercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameSlotRing(t *testing.T) {
	s := &FrameScheduler{config: Config{FramesInFlight: 3}}

	var visited []int
	for i := 0; i < 7; i++ {
		visited = append(visited, s.currentFrame)
		s.finishFrame()
	}

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, visited)
	assert.Equal(t, uint64(7), s.frameCounter)
}

func TestInvalidateMarksStale(t *testing.T) {
	s := &FrameScheduler{}
	assert.False(t, s.stale)

	s.Invalidate()
	assert.True(t, s.stale)
}
