package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"noiseplayer/internal/pidlock"
	"noiseplayer/internal/testsupport"
)

var spawnedPID = regexp.MustCompile(`Spawned daemon with pid (\d+)`)

func startDaemon(t *testing.T, env *cliTestEnv) int {
	t.Helper()
	out, _, err := runCLI(t, env, "start")
	if err != nil {
		t.Fatalf("start: %v (stdout %q)", err, out)
	}
	match := spawnedPID.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("unexpected start output %q", out)
	}
	pid, _ := strconv.Atoi(match[1])
	t.Cleanup(func() {
		if held, _ := pidlock.Held(env.cfg.Paths.PIDFile); held {
			_ = unix.Kill(pid, syscall.SIGTERM)
		}
	})
	return pid
}

func TestStartStopLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv(cliDaemonEnv, "1")
	pidFile := env.cfg.Paths.PIDFile

	first := startDaemon(t, env)
	recorded, err := pidlock.ReadPID(pidFile)
	if err != nil || recorded != first {
		t.Fatalf("pid file = %d (%v), want %d", recorded, err, first)
	}

	before, _ := os.ReadFile(pidFile)
	out, _, err := runCLI(t, env, "start")
	requireExitCode(t, err, exitAlreadyRunning)
	requireContains(t, out, "Daemon already running.")
	if after, _ := os.ReadFile(pidFile); string(after) != string(before) {
		t.Fatalf("rejected start changed pid file: %q -> %q", before, after)
	}

	out, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid "+strconv.Itoa(first)+")")

	out, _, err = runCLI(t, env, "stop", "--wait", "10s")
	if err != nil {
		t.Fatalf("stop: %v (stdout %q)", err, out)
	}
	requireContains(t, out, "Sent SIGTERM to daemon with pid "+strconv.Itoa(first))
	requireContains(t, out, "Daemon stopped")

	second := startDaemon(t, env)
	if second == first {
		t.Fatalf("expected a new pid, got %d twice", first)
	}
	if recorded, _ := pidlock.ReadPID(pidFile); recorded != second {
		t.Fatalf("pid file = %d, want %d", recorded, second)
	}
	if _, _, err := runCLI(t, env, "stop", "--wait", "10s"); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	out, _, err = runCLI(t, env, "history", "-n", "10")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Spawned")
	requireContains(t, out, "Rejected")
	requireContains(t, out, "Stopped")
}

// childPIDs lists processes whose parent is pid.
func childPIDs(t *testing.T, parent int) []int {
	t.Helper()
	entries, err := os.ReadDir("/proc")
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}
	var children []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "stat"))
		if err != nil {
			continue
		}
		// state and ppid follow the parenthesised command name.
		stat := string(data)
		fields := strings.Fields(stat[strings.LastIndexByte(stat, ')')+1:])
		if len(fields) > 1 && fields[1] == strconv.Itoa(parent) {
			children = append(children, pid)
		}
	}
	return children
}

func TestKilledDaemonReleasesLock(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv(cliDaemonEnv, "1")
	pidFile := env.cfg.Paths.PIDFile

	daemon := startDaemon(t, env)
	var players []int
	waitFor(t, 10*time.Second, func() bool {
		players = childPIDs(t, daemon)
		return len(players) > 0
	})
	t.Cleanup(func() {
		for _, pid := range players {
			_ = unix.Kill(pid, syscall.SIGKILL)
		}
	})

	if err := unix.Kill(daemon, syscall.SIGKILL); err != nil {
		t.Fatalf("kill daemon: %v", err)
	}
	// The orphaned player is still running; only the daemon may hold the lock.
	waitFor(t, 10*time.Second, func() bool {
		held, _ := pidlock.Held(pidFile)
		return !held
	})

	replacement := startDaemon(t, env)
	if replacement == daemon {
		t.Fatalf("expected a new daemon, got pid %d again", daemon)
	}
	if _, _, err := runCLI(t, env, "stop", "--wait", "10s"); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartWithoutConfigFileWarnsAndUsesDefaults(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv(cliDaemonEnv, "1")
	binDir := filepath.Join(env.baseDir, "path-bin")
	testsupport.WriteScript(t, binDir, "ffplay", "exec sleep 60\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	missing := filepath.Join(env.baseDir, "nope.toml")
	pidFile := env.cfg.Paths.PIDFile
	var (
		out string
		err error
	)
	logs := captureStderr(t, func() {
		out, _, err = runCLI(t, nil, "--config", missing, "--pid-file", pidFile, "start")
	})
	if err != nil {
		t.Fatalf("start: %v (stdout %q)", err, out)
	}
	requireContains(t, logs, "config load failed; using defaults")
	requireContains(t, logs, "config_path="+missing)

	match := spawnedPID.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("unexpected start output %q", out)
	}
	pid, _ := strconv.Atoi(match[1])
	t.Cleanup(func() {
		if held, _ := pidlock.Held(pidFile); held {
			_ = unix.Kill(pid, syscall.SIGTERM)
		}
	})

	cmdline, readErr := os.ReadFile(filepath.Join("/proc", match[1], "cmdline"))
	if readErr != nil {
		t.Fatalf("read daemon cmdline: %v", readErr)
	}
	requireContains(t, strings.ReplaceAll(string(cmdline), "\x00", " "), "--volume 0.5")

	if _, _, err := runCLI(t, nil, "--config", missing, "--pid-file", pidFile, "stop", "--wait", "10s"); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartReportsDaemonThatCannotPlay(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv(cliDaemonEnv, "1")
	env.cfg.Player.Binary = testsupport.WriteScript(t, env.baseDir, "broken-player", "exit 1\n")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env, "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Spawned daemon with pid")

	// The player fails after the pid is recorded, so start still succeeds
	// and the daemon exits on its own shortly after.
	waitFor(t, 10*time.Second, func() bool {
		held, _ := pidlock.Held(env.cfg.Paths.PIDFile)
		return !held
	})
	log, _ := os.ReadFile(env.cfg.DaemonLogPath())
	requireContains(t, string(log), "player stopped with error")
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "stop")
	requireExitCode(t, err, exitNotRunning)
	requireContains(t, out, "Daemon not running.")
}

func TestStopRefusesCorruptPIDFile(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WritePIDFile(t, env.cfg.Paths.PIDFile, "garbage\n")

	_, _, err := runCLI(t, env, "stop")
	requireExitCode(t, err, exitFatal)
	requireContains(t, err.Error(), "refusing to signal")

	data, _ := os.ReadFile(env.cfg.Paths.PIDFile)
	if string(data) != "garbage\n" {
		t.Fatalf("corrupt pid file modified: %q", data)
	}
}

func TestStopStalePIDIsIdempotent(t *testing.T) {
	env := setupCLITestEnv(t)
	// Pid numbers this large are beyond the default pid_max.
	testsupport.WritePIDFile(t, env.cfg.Paths.PIDFile, "99999999\n")

	out, _, err := runCLI(t, env, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "already gone")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Not running")
	requireContains(t, out, "[OK] Ready (command: "+env.cfg.Player.Binary+")")
}

func TestStatusReportsStalePID(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WritePIDFile(t, env.cfg.Paths.PIDFile, "99999999\n")

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "stale pid 99999999")
}

func TestPIDFileFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	override := filepath.Join(env.baseDir, "override.pid")
	testsupport.WritePIDFile(t, override, "not-a-pid")

	_, _, err := runCLI(t, env, "--pid-file", override, "stop")
	requireExitCode(t, err, exitFatal)
}

func TestNoSubcommandPrintsUsage(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env)
	requireExitCode(t, err, exitUsage)
	requireContains(t, out, "Usage:")
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "launch")
	requireExitCode(t, err, exitUsage)

	_, _, err = runCLI(t, env, "stop", "--bogus")
	requireExitCode(t, err, exitUsage)
}
