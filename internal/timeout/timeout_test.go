package timeout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoTimeoutNeverFires(t *testing.T) {
	m := NewManager()
	d := m.Arm(Options{Timeout: NoTimeout})
	defer d.Stop()

	select {
	case <-d.Fired():
		t.Fatal("deadline fired with no timeout configured")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimeoutFiresAfterDuration(t *testing.T) {
	m := NewManager()
	start := time.Now()
	d := m.Arm(Options{Timeout: 30 * time.Millisecond})

	select {
	case fi := <-d.Fired():
		require.False(t, fi.Hard())
		require.GreaterOrEqual(t, fi.Elapsed(), 30*time.Millisecond-5*time.Millisecond)
		require.Less(t, time.Since(start), time.Second)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
}

func TestStopPreventsFire(t *testing.T) {
	m := NewManager()
	d := m.Arm(Options{Timeout: 20 * time.Millisecond})
	d.Stop()

	select {
	case <-d.Fired():
		t.Fatal("stopped deadline fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestResetOnProgressExtendsDeadline(t *testing.T) {
	m := NewManager()
	d := m.Arm(Options{Timeout: 50 * time.Millisecond, ResetOnProgress: true})
	defer d.Stop()

	// Reset twice, each before the prior deadline would have fired, so the
	// request survives well past the original 50ms window.
	time.Sleep(30 * time.Millisecond)
	d.Reset()
	time.Sleep(30 * time.Millisecond)
	d.Reset()

	select {
	case <-d.Fired():
		t.Fatal("deadline fired despite progress resets")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHardCeilingFiresRegardlessOfReset(t *testing.T) {
	m := NewManager()
	d := m.Arm(Options{Timeout: 40 * time.Millisecond, ResetOnProgress: true, MaxTotal: 80 * time.Millisecond})
	defer d.Stop()

	start := time.Now()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var fi fireInfo
	done := false
	for !done {
		select {
		case <-ticker.C:
			d.Reset()
		case got := <-d.Fired():
			fi = got
			done = true
		}
	}

	require.True(t, fi.Hard())
	require.InDelta(t, 80*time.Millisecond, time.Since(start), float64(50*time.Millisecond))
}

func TestMaxTotalFiresWithoutBaseTimeout(t *testing.T) {
	m := NewManager()
	start := time.Now()
	d := m.Arm(Options{Timeout: NoTimeout, MaxTotal: 30 * time.Millisecond})
	defer d.Stop()

	select {
	case fi := <-d.Fired():
		require.True(t, fi.Hard())
		require.GreaterOrEqual(t, fi.Elapsed(), 30*time.Millisecond-5*time.Millisecond)
		require.Less(t, time.Since(start), time.Second)
	case <-time.After(time.Second):
		t.Fatal("hard ceiling never fired with no base timeout set")
	}
}
