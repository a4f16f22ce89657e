// Package companion launches the local payment service next to the bot.
package companion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	defaultStopTimeout = 10 * time.Second
	maxLogLine         = 64 * 1024
)

// Config describes the companion process.
type Config struct {
	Enabled    bool
	Dir        string
	ServiceURL string
	// Command and Args override "npm --prefix <Dir> start".
	Command     string
	Args        []string
	StopTimeout time.Duration
}

// Runner owns the companion process.
type Runner struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// New creates a Runner. Nothing is started until Start is called.
func New(cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Command == "" {
		cfg.Command = "npm"
		cfg.Args = []string{"--prefix", cfg.Dir, "start"}
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}

	return &Runner{
		cfg: cfg,
		log: log.With(slog.String("component", "payment_service")),
	}
}

// Start launches the process. A disabled runner, a missing directory or a
// missing executable is logged and reported as success so the bot keeps running.
func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("payment service autostart disabled")
		return nil
	}

	if info, err := os.Stat(r.cfg.Dir); err != nil || !info.IsDir() {
		r.log.Warn("payment service directory not found, skipping autostart", slog.String("dir", r.cfg.Dir))
		return nil
	}

	path, err := exec.LookPath(r.cfg.Command)
	if err != nil {
		r.log.Warn("executable not found, install it or set START_PAYMENT_SERVICE=0",
			slog.String("command", r.cfg.Command))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return errors.New("companion: already started")
	}

	cmd := exec.Command(path, r.cfg.Args...)
	cmd.Dir = r.cfg.Dir
	cmd.Env = r.env()

	reader, writer, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("companion: create pipe: %w", err)
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		r.log.Warn("failed to launch payment service", slog.Any("error", err))
		return nil
	}
	_ = writer.Close()

	r.cmd = cmd
	r.done = make(chan struct{})
	r.log.Info("payment service started", slog.Int("pid", cmd.Process.Pid), slog.String("dir", r.cfg.Dir))

	go r.stream(reader)
	go r.wait(cmd, r.done)

	return nil
}

// Running reports whether the process has been started and has not exited.
func (r *Runner) Running() bool {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop sends SIGTERM and kills the process if it outlives the stop timeout or ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cmd, done := r.cmd, r.done
	r.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.log.Warn("failed to signal payment service", slog.Any("error", err))
	}

	timer := time.NewTimer(r.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	r.log.Warn("payment service did not stop in time, killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("companion: kill: %w", err)
	}
	<-done

	return nil
}

func (r *Runner) env() []string {
	env := os.Environ()
	if _, set := os.LookupEnv("PORT"); set {
		return env
	}
	if port := InferPort(r.cfg.ServiceURL); port != "" {
		env = append(env, "PORT="+port)
	}
	return env
}

func (r *Runner) stream(reader io.ReadCloser) {
	defer reader.Close()

	// Lines longer than maxLogLine are truncated, never left unread.
	br := bufio.NewReader(reader)
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := maxLogLine - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if err != nil {
			if len(line) > 0 {
				r.log.Info(string(line))
			}
			return
		}
		if isPrefix {
			continue
		}
		r.log.Info(string(line))
		line = line[:0]
	}
}

func (r *Runner) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	if err != nil {
		r.log.Info("payment service exited", slog.Any("error", err))
	} else {
		r.log.Info("payment service exited")
	}
	close(done)
}

// InferPort returns the port of rawURL, falling back to the scheme default.
func InferPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if port := u.Port(); port != "" {
		return port
	}

	switch u.Scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
