package daemonctl_test

import (
	"context"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"noiseplayer/internal/daemonctl"
	"noiseplayer/internal/pidlock"
	"noiseplayer/internal/testsupport"
)

type recordedSignal struct {
	pid int
	sig syscall.Signal
}

func recordingSignaler(result error) (daemonctl.Signaler, *[]recordedSignal) {
	var calls []recordedSignal
	return func(pid int, sig syscall.Signal) error {
		calls = append(calls, recordedSignal{pid: pid, sig: sig})
		return result
	}, &calls
}

func TestStopWithoutPIDFile(t *testing.T) {
	signaler, calls := recordingSignaler(nil)
	_, err := daemonctl.Stop(daemonctl.StopOptions{
		PIDFile:  filepath.Join(t.TempDir(), "noiseplayer.pid"),
		Signaler: signaler,
	})
	if !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("no signal expected, got %v", *calls)
	}
}

func TestStopCorruptPIDSendsNothing(t *testing.T) {
	for _, content := range []string{"", "abc\n", "-4\n", "0", "4294967295\n", "4294996604\n", "2147483648"} {
		path := filepath.Join(t.TempDir(), "noiseplayer.pid")
		testsupport.WritePIDFile(t, path, content)
		signaler, calls := recordingSignaler(nil)

		_, err := daemonctl.Stop(daemonctl.StopOptions{PIDFile: path, Signaler: signaler})
		if !errors.Is(err, pidlock.ErrCorruptPID) {
			t.Fatalf("content %q: expected ErrCorruptPID, got %v", content, err)
		}
		if len(*calls) != 0 {
			t.Fatalf("content %q: no signal expected, got %v", content, *calls)
		}
	}
}

func TestStopSendsSIGTERMToRecordedPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noiseplayer.pid")
	testsupport.WritePIDFile(t, path, " 4242\n")
	signaler, calls := recordingSignaler(nil)

	result, err := daemonctl.Stop(daemonctl.StopOptions{PIDFile: path, Signaler: signaler})
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.Outcome != daemonctl.OutcomeSignalled || result.PID != 4242 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(*calls) != 1 || (*calls)[0] != (recordedSignal{pid: 4242, sig: syscall.SIGTERM}) {
		t.Fatalf("unexpected signals %v", *calls)
	}
	if got := readPIDText(t, path); got != " 4242\n" {
		t.Fatalf("pid file modified: %q", got)
	}
}

func TestStopDeliveryOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		outcome daemonctl.StopOutcome
	}{
		{name: "gone", err: unix.ESRCH, outcome: daemonctl.OutcomeAlreadyGone},
		{name: "denied", err: unix.EPERM, outcome: daemonctl.OutcomeDeliveryFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "noiseplayer.pid")
			testsupport.WritePIDFile(t, path, "31337\n")
			signaler, _ := recordingSignaler(tc.err)

			result, err := daemonctl.Stop(daemonctl.StopOptions{PIDFile: path, Signaler: signaler})
			if err != nil {
				t.Fatalf("Stop: %v", err)
			}
			if result.Outcome != tc.outcome {
				t.Fatalf("outcome = %s, want %s", result.Outcome, tc.outcome)
			}
			if tc.outcome == daemonctl.OutcomeDeliveryFailed && !errors.Is(result.Err, unix.EPERM) {
				t.Fatalf("expected EPERM in result, got %v", result.Err)
			}
		})
	}
}

func TestProbeStates(t *testing.T) {
	dir := t.TempDir()

	missing, err := daemonctl.Probe(filepath.Join(dir, "missing.pid"))
	if err != nil || missing.State != daemonctl.StateNotRunning {
		t.Fatalf("missing: %+v %v", missing, err)
	}

	corruptPath := filepath.Join(dir, "corrupt.pid")
	testsupport.WritePIDFile(t, corruptPath, "not-a-pid")
	corrupt, err := daemonctl.Probe(corruptPath)
	if err != nil || corrupt.State != daemonctl.StateCorrupt || corrupt.Detail == "" {
		t.Fatalf("corrupt: %+v %v", corrupt, err)
	}

	wrappedPath := filepath.Join(dir, "wrapped.pid")
	testsupport.WritePIDFile(t, wrappedPath, "4294967295\n")
	wrapped, err := daemonctl.Probe(wrappedPath)
	if err != nil || wrapped.State != daemonctl.StateCorrupt || wrapped.Alive {
		t.Fatalf("wrapped: %+v %v", wrapped, err)
	}

	stalePath := filepath.Join(dir, "stale.pid")
	testsupport.WritePIDFile(t, stalePath, "4242\n")
	stale, err := daemonctl.Probe(stalePath)
	if err != nil || stale.State != daemonctl.StateStale || stale.PID != 4242 || stale.Locked {
		t.Fatalf("stale: %+v %v", stale, err)
	}

	lockedPath := filepath.Join(dir, "locked.pid")
	testsupport.WritePIDFile(t, lockedPath, "4243\n")
	file, err := pidlock.OpenOrCreate(lockedPath)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	guard, err := file.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer guard.Release()
	running, err := daemonctl.Probe(lockedPath)
	if err != nil || running.State != daemonctl.StateRunning || !running.Locked {
		t.Fatalf("running: %+v %v", running, err)
	}
}

func TestWaitForReleaseHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noiseplayer.pid")
	file, err := pidlock.OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	guard, err := file.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer guard.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := daemonctl.WaitForRelease(ctx, path, 10*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
