package wsl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// forcedUTF8Env pins the tool's output encoding so decoding is predictable.
const forcedUTF8Env = "WSL_UTF8=1"

// ExecutorConfig carries the executor's tunables. Zero fields fall back to
// defaults in NewExecutor.
type ExecutorConfig struct {
	Binary       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Binary:       "wsl.exe",
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Executor spawns the wrapped tool as a child process and classifies its
// results. Safe for concurrent use.
type Executor struct {
	binary       string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	def := DefaultExecutorConfig()
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = def.Binary
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Executor{
		binary:       cfg.Binary,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Binary returns the configured tool path.
func (e *Executor) Binary() string { return e.binary }

// Run executes the tool once and waits for completion under the class
// deadline. A timed-out child is killed, not left running: an orphaned
// write-class process could corrupt a later operation on the same target.
// Faults while supervising the process surface as a failure result, never
// as a panic.
func (e *Executor) Run(ctx context.Context, args ...string) (res Result[string]) {
	commandStr := e.binary + " " + strings.Join(args, " ")
	isWrite := IsWriteCommand(args)
	timeout := e.readTimeout
	if isWrite {
		timeout = e.writeTimeout
	}
	if isWrite {
		log.Info().Str("command", commandStr).Msg("executing write command")
	} else {
		log.Debug().Str("command", commandStr).Msg("executing command")
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("command supervision fault: %v", r)
			log.Error().Str("command", commandStr).Msg(msg)
			res = Fail[string]("", msg)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	cmd.Env = append(os.Environ(), forcedUTF8Env)
	cmd.SysProcAttr = HiddenConsoleAttr()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outText := DecodeConsole(stdout.Bytes())
	errText := DecodeConsole(stderr.Bytes())

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("command timed out after %s: %s", timeout, commandStr)
		log.Error().Msg(msg)
		return Fail[string]("", msg)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Some tool builds report failures on stdout with an empty
			// stderr.
			msg := errText
			if strings.TrimSpace(msg) == "" && strings.TrimSpace(outText) != "" {
				msg = outText
			}
			if strings.TrimSpace(msg) == "" {
				msg = fmt.Sprintf("process exited with error: %v", exitErr)
			}
			log.Debug().Str("command", commandStr).Str("error", msg).Msg("command failed")
			return Fail[string](outText, msg)
		}
		msg := fmt.Sprintf("failed to execute command: %v", err)
		log.Error().Str("command", commandStr).Msg(msg)
		return Fail[string]("", msg)
	}

	if isWrite {
		log.Info().Str("command", commandStr).Msg("write command completed")
	}
	return Result[string]{Success: true, Output: outText}
}

// RunStreaming executes the tool and pushes decoded fragments to the
// callback as they arrive from either output channel, in arrival order.
// The callback runs on the calling goroutine. All fragments accumulate
// into the final result; classification mirrors Run.
func (e *Executor) RunStreaming(ctx context.Context, onFragment func(string), args ...string) (res Result[string]) {
	commandStr := e.binary + " " + strings.Join(args, " ")
	log.Info().Str("command", commandStr).Msg("executing streaming command")

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("command supervision fault: %v", r)
			log.Error().Str("command", commandStr).Msg(msg)
			res = Fail[string]("", msg)
		}
	}()

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Env = append(os.Environ(), forcedUTF8Env)
	cmd.SysProcAttr = HiddenConsoleAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Fail[string]("", fmt.Sprintf("failed to open stdout pipe: %v", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Fail[string]("", fmt.Sprintf("failed to open stderr pipe: %v", err))
	}
	if err := cmd.Start(); err != nil {
		return Fail[string]("", fmt.Sprintf("failed to spawn %s: %v", e.binary, err))
	}
	log.Debug().Int("pid", cmd.Process.Pid).Str("command", commandStr).Msg("process spawned")

	// Each channel drains through its own decoder: interleaved buffering
	// state must not cross channels.
	frags := make(chan string, 16)
	var wg sync.WaitGroup
	wg.Add(2)
	go drainStream(&wg, frags, stdout)
	go drainStream(&wg, frags, stderr)
	go func() {
		wg.Wait()
		close(frags)
	}()

	var full strings.Builder
	for frag := range frags {
		full.WriteString(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	}

	err = cmd.Wait()
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Fail[string](full.String(), fmt.Sprintf("streaming command aborted: %v", ctx.Err()))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Fail[string](full.String(), fmt.Sprintf("process exited with error: %v", exitErr))
		}
		return Fail[string](full.String(), fmt.Sprintf("failed to wait for process: %v", err))
	}
	return Result[string]{Success: true, Output: full.String()}
}

func drainStream(wg *sync.WaitGroup, frags chan<- string, r io.Reader) {
	defer wg.Done()
	dec := NewStreamDecoder()
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				frags <- text
			}
		}
		if err != nil {
			if text := dec.Flush(); text != "" {
				frags <- text
			}
			return
		}
	}
}

// SpawnKeepAlive starts a detached placeholder process inside the distro.
// The tool suspends an environment once its last process exits; a
// non-terminating sleep holds it open. The child is released, never
// reaped, and its outcome is not reported back.
func (e *Executor) SpawnKeepAlive(name string) error {
	cmd := exec.Command(e.binary, "-d", name, "--", "sleep", "infinity")
	cmd.Env = append(os.Environ(), forcedUTF8Env)
	cmd.SysProcAttr = HiddenConsoleAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn keep-alive for %s: %w", name, err)
	}
	log.Info().Str("distro", name).Int("pid", cmd.Process.Pid).Msg("keep-alive process started")
	return cmd.Process.Release()
}

// CheckPathExists probes a directory inside the distro. The home alias is
// always considered present.
func (e *Executor) CheckPathExists(ctx context.Context, distro, path string) bool {
	if path == "~" {
		return true
	}
	return e.Run(ctx, "-d", distro, "-e", "test", "-d", path).Success
}

// CheckFileExecutable reports whether the path is a regular file and
// whether it is executable, both checked as root.
func (e *Executor) CheckFileExecutable(ctx context.Context, distro, path string) (exists, executable bool) {
	exists = e.Run(ctx, "-d", distro, "-u", "root", "-e", "test", "-f", path).Success
	executable = e.Run(ctx, "-d", distro, "-u", "root", "-e", "test", "-x", path).Success
	return exists, executable
}
