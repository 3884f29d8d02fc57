package process

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// TestKillProcessGroup - Invalid PID Handling
// ---------------------------------------------------------------------------

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	// PID 0 and small PIDs would target real groups; use one that cannot exist.
	KillProcessGroup(999999999)
}

// ---------------------------------------------------------------------------
// TestConfigure - Cancellation Kills The Group
// ---------------------------------------------------------------------------

func TestConfigure_CancelKillsChild(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", "sleep 30 & wait")
	Configure(cmd)

	start := time.Now()
	if err := cmd.Run(); err == nil {
		t.Fatal("expected the command to be killed")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("took %v, group was not killed", elapsed)
	}
	if ctx.Err() == nil {
		t.Error("context should have expired")
	}
}
