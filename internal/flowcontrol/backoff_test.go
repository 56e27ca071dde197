package flowcontrol_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/confsync/internal/flowcontrol"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	b := flowcontrol.NewBackoff(1*time.Second, 8*time.Second)

	// 1s, 2s, 4s, 8s, then pinned at the cap.
	assert.Equal(t, 1*time.Second, b.Fail())
	assert.Equal(t, 2*time.Second, b.Fail())
	assert.Equal(t, 4*time.Second, b.Fail())
	assert.Equal(t, 8*time.Second, b.Fail())
	assert.Equal(t, 8*time.Second, b.Fail())
}

func TestBackoffSuccessResetsSchedule(t *testing.T) {
	t.Parallel()

	b := flowcontrol.NewBackoff(100*time.Millisecond, 2*time.Second)

	b.Fail()
	b.Fail()
	b.Fail()
	b.Success()

	assert.Equal(t, 100*time.Millisecond, b.Fail(), "first delay after success is the minimum again")
}

func TestBackoffMinEqualsMax(t *testing.T) {
	t.Parallel()

	b := flowcontrol.NewBackoff(2*time.Second, 2*time.Second)
	assert.Equal(t, 2*time.Second, b.Fail())
	assert.Equal(t, 2*time.Second, b.Fail())
}

func TestNewBackoffPanicsOnInvalidBounds(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { flowcontrol.NewBackoff(0, time.Second) })
	assert.Panics(t, func() { flowcontrol.NewBackoff(-time.Second, time.Second) })
	assert.Panics(t, func() { flowcontrol.NewBackoff(2*time.Second, time.Second) })
}
