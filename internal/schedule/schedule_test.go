package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	clk := NewManual()
	var fired []string

	clk.AfterFunc(3*time.Second, func() { fired = append(fired, "reconnect") })
	clk.AfterFunc(time.Second, func() { fired = append(fired, "phase") })
	require.Equal(t, 2, clk.Pending())

	clk.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	clk.Advance(3 * time.Second)
	assert.Equal(t, []string{"phase", "reconnect"}, fired)
	assert.Zero(t, clk.Pending())
}

func TestManual_CancelPreventsFire(t *testing.T) {
	clk := NewManual()
	fired := false

	task := clk.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())

	clk.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestNilTaskCancel(t *testing.T) {
	var task *Task
	assert.False(t, task.Cancel())
}

func TestReal_CancelStopsTimer(t *testing.T) {
	done := make(chan struct{})
	task := Real.AfterFunc(50*time.Millisecond, func() { close(done) })
	require.True(t, task.Cancel())

	select {
	case <-done:
		t.Fatalf("cancelled task fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReal_Fires(t *testing.T) {
	done := make(chan struct{})
	Real.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for task")
	}
}
