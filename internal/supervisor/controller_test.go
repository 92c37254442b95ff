package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControllerTracksLiveSessions(t *testing.T) {
	c := NewController()
	assert.Equal(t, int64(0), c.LiveSessions())

	c.SessionStarted()
	c.SessionStarted()
	assert.Equal(t, int64(2), c.LiveSessions())

	c.SessionEnded()
	assert.Equal(t, int64(1), c.LiveSessions())

	c.SessionEnded()
	assert.Equal(t, int64(0), c.LiveSessions())
}

func TestControllerDrainReturnsOnceAllSessionsEnd(t *testing.T) {
	c := NewController()
	c.SessionStarted()

	done := make(chan struct{})
	go func() {
		c.Drain(0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Drain returned before the session ended")
	case <-time.After(50 * time.Millisecond):
	}

	c.SessionEnded()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after the session ended")
	}
}

func TestControllerDrainRespectsGracePeriod(t *testing.T) {
	c := NewController()
	c.SessionStarted() // never ends

	start := time.Now()
	c.Drain(30 * time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}
