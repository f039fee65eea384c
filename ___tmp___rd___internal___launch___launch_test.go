package launch

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStartsProcessAndWaitRunsTermHooks(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	p, err := New(cmd)
	require.NoError(t, err)

	var hookRan bool
	p.AddTermHook(func() { hookRan = true })

	err = p.Wait()
	require.NoError(t, err)
	assert.True(t, hookRan)
}

func TestKillStopsLongRunningProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	p, err := New(cmd)
	require.NoError(t, err)

	done := make(chan struct{})
	p.AddTermHook(func() { close(done) })

	p.Kill()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("term hook did not run after Kill")
	}
}

func TestEnvironOverridesDisplay(t *testing.T) {
	env := Environ(":1", "")
	found := false
	for _, kv := range env {
		if kv == "DISPLAY=:1" {
			found = true
		}
		assert.NotContains(t, kv, "DISPLAY=:0")
	}
	assert.True(t, found)
}

func TestEnvironSetsXauthorityWhenGiven(t *testing.T) {
	env := Environ(":1", "/tmp/fake.Xauthority")
	found := false
	for _, kv := range env {
		if kv == "XAUTHORITY=/tmp/fake.Xauthority" {
			found = true
		}
	}
	assert.True(t, found)
}


