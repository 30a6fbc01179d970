package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

// DaemonChildFlag marks the re-executed background process.
const DaemonChildFlag = "--daemon-child"

var (
	// ErrDaemonRunning is returned by Start when the PID file names a live
	// process.
	ErrDaemonRunning = errors.New("watch daemon already running")
	// ErrDaemonNotRunning is returned by Stop when there is nothing to stop.
	ErrDaemonNotRunning = errors.New("watch daemon not running")
)

// Daemon manages the background "usagestats watch" process through a
// PID file.
type Daemon struct {
	PIDFile string
	LogFile string

	// Args are appended to the child's "watch --daemon-child" command line.
	Args []string
}

// Start re-executes the current binary detached from the terminal and
// records its PID. Output of the child goes to LogFile.
func (d *Daemon) Start() error {
	pid, err := d.PID()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if pid != 0 {
		return fmt.Errorf("%w (pid %d, %s)", ErrDaemonRunning, pid, d.PIDFile)
	}

	logF, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, append([]string{"watch", DaemonChildFlag}, d.Args...)...)
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}
	if err := writePID(d.PIDFile, cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		return err
	}
	return cmd.Process.Release()
}

// Run is the child side: fn runs until SIGTERM or SIGINT cancels its
// context, then the PID file is removed.
func (d *Daemon) Run(ctx context.Context, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runErr := fn(ctx)
	if err := os.Remove(d.PIDFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(runErr, fmt.Errorf("failed to remove PID file: %w", err))
	}
	return runErr
}

// Stop sends SIGTERM to the recorded process.
func (d *Daemon) Stop() error {
	pid, err := d.PID()
	if err != nil {
		return err
	}
	if pid == 0 {
		return ErrDaemonNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

// Running reports whether the recorded process is alive.
func (d *Daemon) Running() (bool, error) {
	pid, err := d.PID()
	return pid != 0, err
}

// PID returns the PID of the live daemon, or 0 when none is running. A PID
// file that is unreadable as a number or names a dead process is stale and
// gets removed.
func (d *Daemon) PID() (int, error) {
	data, err := os.ReadFile(d.PIDFile)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 || !alive(pid) {
		os.Remove(d.PIDFile)
		return 0, nil
	}
	return pid, nil
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks for existence.
	return process.Signal(syscall.Signal(0)) == nil
}

func writePID(path string, pid int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
