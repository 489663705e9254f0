package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotRunning is returned by calls made before Boot or after the process exited.
var ErrNotRunning = errors.New("engine process is not running")

// request is one line written to the engine's stdin.
type request struct {
	ID         int64   `json:"id"`
	Op         string  `json:"op"`
	Path       string  `json:"path,omitempty"`
	Element    string  `json:"element,omitempty"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`
	Decimation int     `json:"decimation,omitempty"`
}

// message is one line read from the engine's stdout: either a response to a
// request or an unsolicited event.
type message struct {
	ID     int64           `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// ProcessEngine drives a simulator subprocess over newline-delimited JSON on
// its stdin and stdout. Stderr lines go to the debug log.
type ProcessEngine struct {
	command     string
	args        []string
	dir         string
	env         []string
	callTimeout time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	nextID  int64
	pending map[int64]chan message
	exited  chan struct{}

	ready     atomic.Bool
	completed atomic.Bool
}

// ProcessOption configures a ProcessEngine.
type ProcessOption func(*ProcessEngine)

// WithDir sets the working directory of the subprocess.
func WithDir(dir string) ProcessOption {
	return func(p *ProcessEngine) { p.dir = dir }
}

// WithEnv appends environment variables to the subprocess environment.
func WithEnv(env ...string) ProcessOption {
	return func(p *ProcessEngine) { p.env = append(p.env, env...) }
}

// NewProcessEngine prepares an engine running command with args. Nothing is
// started until Boot.
func NewProcessEngine(command string, args []string, callTimeout time.Duration, log *slog.Logger, opts ...ProcessOption) *ProcessEngine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	p := &ProcessEngine{
		command:     command,
		args:        args,
		callTimeout: callTimeout,
		log:         log,
		pending:     make(map[int64]chan message),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Boot starts the subprocess and reads its output until it exits.
func (p *ProcessEngine) Boot(ctx context.Context) error {
	if p.command == "" {
		return errors.New("no engine command configured")
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), p.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine %s: %w", p.command, err)
	}

	exited := make(chan struct{})
	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.exited = exited
	p.mu.Unlock()

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.forwardStderr(stderr)
	}()

	p.readLoop(stdout)
	<-stderrDone
	waitErr := cmd.Wait()

	p.mu.Lock()
	close(exited)
	for id, ch := range p.pending {
		ch <- message{ID: id, Error: ErrNotRunning.Error()}
		delete(p.pending, id)
	}
	p.cmd = nil
	p.stdin = nil
	p.mu.Unlock()
	p.ready.Store(false)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return waitErr
}

func (p *ProcessEngine) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 256*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			p.log.Debug("engine: unparseable line", "line", string(line), "error", err)
			continue
		}

		switch msg.Event {
		case "ready":
			p.ready.Store(true)
			continue
		case "complete":
			p.completed.Store(true)
			continue
		case "":
		default:
			p.log.Debug("engine: unknown event", "event", msg.Event)
			continue
		}

		p.mu.Lock()
		ch, ok := p.pending[msg.ID]
		delete(p.pending, msg.ID)
		p.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
	if err := scanner.Err(); err != nil {
		p.log.Warn("engine: reading output", "error", err)
	}
}

func (p *ProcessEngine) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.log.Debug("engine stderr", "line", scanner.Text())
	}
}

// call sends one request and decodes the result into out (which may be nil).
func (p *ProcessEngine) call(req request, out any) error {
	ch := make(chan message, 1)

	p.mu.Lock()
	if p.stdin == nil {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.nextID++
	req.ID = p.nextID
	p.pending[req.ID] = ch
	exited := p.exited

	line, err := json.Marshal(req)
	if err == nil {
		_, err = p.stdin.Write(append(line, '\n'))
	}
	if err != nil {
		delete(p.pending, req.ID)
		p.mu.Unlock()
		return fmt.Errorf("engine %s: %w", req.Op, err)
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.callTimeout)
	defer timer.Stop()

	var msg message
	select {
	case msg = <-ch:
	case <-timer.C:
		p.mu.Lock()
		delete(p.pending, req.ID)
		p.mu.Unlock()
		return fmt.Errorf("engine %s: no response within %s", req.Op, p.callTimeout)
	case <-exited:
		select {
		case msg = <-ch:
		default:
			return fmt.Errorf("engine %s: %w", req.Op, ErrNotRunning)
		}
	}

	if msg.Error != "" {
		return fmt.Errorf("engine %s: %s", req.Op, msg.Error)
	}
	if out == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, out); err != nil {
		return fmt.Errorf("engine %s: decode result: %w", req.Op, err)
	}
	return nil
}

func (p *ProcessEngine) Ready() bool {
	return p.ready.Load()
}

func (p *ProcessEngine) Load(path string) error {
	return p.call(request{Op: "load", Path: path}, nil)
}

func (p *ProcessEngine) EndTime() (float64, error) {
	var v float64
	err := p.call(request{Op: "end_time"}, &v)
	return v, err
}

func (p *ProcessEngine) Timestep() (float64, error) {
	var v float64
	err := p.call(request{Op: "timestep"}, &v)
	return v, err
}

func (p *ProcessEngine) Run() error {
	return p.call(request{Op: "run"}, nil)
}

func (p *ProcessEngine) Completed() bool {
	return p.completed.Load()
}

func (p *ProcessEngine) ResetCompleted() {
	p.completed.Store(false)
}

func (p *ProcessEngine) ControlElements() ([]string, error) {
	var names []string
	err := p.call(request{Op: "control_elements"}, &names)
	return names, err
}

func (p *ProcessEngine) CircuitElements() ([]string, error) {
	var names []string
	err := p.call(request{Op: "circuit_elements"}, &names)
	return names, err
}

func (p *ProcessEngine) TimeArray(element string, start, end float64, decimation int) ([]float64, error) {
	var v []float64
	err := p.call(request{Op: "time_array", Element: element, Start: start, End: end, Decimation: decimation}, &v)
	return v, err
}

func (p *ProcessEngine) ValueArray(element string, start, end float64, decimation int) ([]float64, error) {
	var v []float64
	err := p.call(request{Op: "value_array", Element: element, Start: start, End: end, Decimation: decimation}, &v)
	return v, err
}

// Close asks the engine to shut down by closing its stdin, then kills the
// process if it has not exited within a grace period.
func (p *ProcessEngine) Close() error {
	p.mu.Lock()
	stdin, cmd, exited := p.stdin, p.cmd, p.exited
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}

	stdin.Close()
	select {
	case <-exited:
		return nil
	case <-time.After(2 * time.Second):
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill engine: %w", err)
	}
	return nil
}
