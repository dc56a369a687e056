package daemonrun_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"noiseplayer/internal/daemonrun"
	"noiseplayer/internal/pidlock"
	"noiseplayer/internal/player"
	"noiseplayer/internal/testsupport"
)

type stubRunner struct {
	started chan float64
	err     error
}

func (s *stubRunner) RunForever(ctx context.Context, volume float64) error {
	if s.started != nil {
		s.started <- volume
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

// lockedDescriptor locks path and returns a duplicate descriptor sharing the
// lock, standing in for the one a launcher hands down.
func lockedDescriptor(t *testing.T, path string) uintptr {
	t.Helper()
	file, err := pidlock.OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	guard, err := file.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	fd, err := unix.Dup(int(guard.Descriptor().Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	if err := guard.Leak(); err != nil {
		t.Fatalf("Leak: %v", err)
	}
	return uintptr(fd)
}

func TestRunRecordsPIDBeforePlaying(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.Paths.PIDFile
	testsupport.WritePIDFile(t, path, "999999\n")
	fd := lockedDescriptor(t, path)

	runner := &stubRunner{started: make(chan float64, 1)}
	var ready bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, daemonrun.Options{
			PIDFile:  path,
			Volume:   0.3,
			Runner:   runner,
			LockFD:   fd,
			Ready:    &ready,
			ReadyAck: "ready\n",
		})
	}()

	select {
	case volume := <-runner.started:
		if volume != 0.3 {
			t.Fatalf("runner volume = %v, want 0.3", volume)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner never started")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q, want %d", got, os.Getpid())
	}
	if ready.String() != "ready\n" {
		t.Fatalf("ready ack = %q", ready.String())
	}
	if held, err := pidlock.Held(path); err != nil || !held {
		t.Fatalf("expected lock held while running, held=%v err=%v", held, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if held, _ := pidlock.Held(path); held {
		t.Fatal("expected lock released after shutdown")
	}
}

func TestRunReturnsPlayerInitError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fd := lockedDescriptor(t, cfg.Paths.PIDFile)

	initErr := errors.Join(player.ErrInit, errors.New("no audio device"))
	err := daemonrun.Run(context.Background(), daemonrun.Options{
		PIDFile: cfg.Paths.PIDFile,
		Runner:  &stubRunner{err: initErr},
		LockFD:  fd,
	})
	if !errors.Is(err, player.ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
}

func TestRunRejectsUnlockedDescriptor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.Paths.PIDFile

	holder, err := pidlock.OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	guard, err := holder.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer guard.Release()

	foreign, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fd, err := unix.Dup(int(foreign.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	_ = foreign.Close()

	runner := &stubRunner{started: make(chan float64, 1)}
	err = daemonrun.Run(context.Background(), daemonrun.Options{
		PIDFile: path,
		Runner:  runner,
		LockFD:  uintptr(fd),
	})
	if !errors.Is(err, pidlock.ErrAlreadyLocked) {
		t.Fatalf("expected ErrAlreadyLocked, got %v", err)
	}
	if len(runner.started) != 0 {
		t.Fatal("runner must not start without the lock")
	}
}
