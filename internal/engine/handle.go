package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chesschat/coach-backend/internal/platform/logger"
)

// Config holds per-process engine settings. Search parameters are per call.
type Config struct {
	BinaryPath   string
	HashMB       int
	Threads      int
	ReadyTimeout time.Duration
}

// Request is one bounded search. MoveTimeMs takes precedence over Depth when
// both are set. SkillLevel below zero means full strength.
type Request struct {
	FEN        string
	Depth      int
	MoveTimeMs int
	SkillLevel int
	Timeout    time.Duration
}

// Result is a completed evaluation. Scores are normalized to white's
// perspective regardless of the side to move.
type Result struct {
	FEN            string
	RequestedDepth int
	Depth          int
	BestMove       string
	ScoreCP        int
	MateIn         int
	PV             []string
	Nodes          int64
	Elapsed        time.Duration
}

// Handle is one engine worker. Implementations are not safe for concurrent
// use; the pool hands each handle to one caller at a time.
type Handle interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
	Healthy() bool
	Close()
}

var handleSeq atomic.Int64

// uciHandle owns a single UCI subprocess speaking the line protocol over
// stdin/stdout. A reader goroutine feeds stdout lines into a channel so
// searches can block on a select with a deadline instead of polling.
type uciHandle struct {
	id      int64
	cfg     Config
	log     *logger.Logger
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan string
	healthy bool
}

// Spawn starts a new engine subprocess and completes the UCI handshake.
func Spawn(cfg Config, baseLog *logger.Logger) (Handle, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 5 * time.Second
	}

	id := handleSeq.Add(1)
	log := baseLog.With("component", "EngineHandle", "engine_id", id)

	cmd := exec.Command(cfg.BinaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine start: %w", err)
	}

	h := &uciHandle{
		id:      id,
		cfg:     cfg,
		log:     log,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan string, 256),
		healthy: true,
	}
	go h.readLoop(stdout)

	if err := h.handshake(); err != nil {
		h.kill()
		return nil, err
	}
	log.Debug("Engine subprocess started", "pid", cmd.Process.Pid)
	return h, nil
}

func (h *uciHandle) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		h.lines <- scanner.Text()
	}
	close(h.lines)
	_ = h.cmd.Wait()
}

func (h *uciHandle) handshake() error {
	if err := h.send("uci"); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	if err := h.waitFor("uciok", h.cfg.ReadyTimeout); err != nil {
		return err
	}
	if h.cfg.HashMB > 0 {
		_ = h.send(fmt.Sprintf("setoption name Hash value %d", h.cfg.HashMB))
	}
	if h.cfg.Threads > 0 {
		_ = h.send(fmt.Sprintf("setoption name Threads value %d", h.cfg.Threads))
	}
	if err := h.send("isready"); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	return h.waitFor("readyok", h.cfg.ReadyTimeout)
}

// Analyze runs one bounded search. Order matters: the engine state is reset
// and per-call difficulty options are set before the position is loaded;
// setting them afterwards silently searches the previous configuration.
func (h *uciHandle) Analyze(ctx context.Context, req Request) (*Result, error) {
	if !h.healthy {
		return nil, fmt.Errorf("%w: handle already discarded", ErrEngineCrashed)
	}
	if req.Timeout <= 0 {
		req.Timeout = 10 * time.Second
	}

	start := time.Now()

	if err := h.send("ucinewgame"); err != nil {
		h.markCrashed()
		return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	if req.SkillLevel >= 0 {
		if err := h.send(fmt.Sprintf("setoption name Skill Level value %d", req.SkillLevel)); err != nil {
			h.markCrashed()
			return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
		}
	}
	if err := h.send("isready"); err != nil {
		h.markCrashed()
		return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	if err := h.waitFor("readyok", h.cfg.ReadyTimeout); err != nil {
		return nil, err
	}
	if err := h.send("position fen " + req.FEN); err != nil {
		h.markCrashed()
		return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}

	goCmd := fmt.Sprintf("go depth %d", req.Depth)
	if req.MoveTimeMs > 0 {
		goCmd = fmt.Sprintf("go movetime %d", req.MoveTimeMs)
	}
	if err := h.send(goCmd); err != nil {
		h.markCrashed()
		return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}

	deadline := time.NewTimer(req.Timeout)
	defer deadline.Stop()

	var last infoLine
	var haveInfo bool
	for {
		select {
		case <-ctx.Done():
			h.kill()
			return nil, fmt.Errorf("%w: %v", ErrEngineTimeout, ctx.Err())
		case <-deadline.C:
			h.kill()
			return nil, fmt.Errorf("%w: no result within %s", ErrEngineTimeout, req.Timeout)
		case line, ok := <-h.lines:
			if !ok {
				h.healthy = false
				return nil, fmt.Errorf("%w: output closed mid-search", ErrEngineCrashed)
			}
			if info, scored := parseInfo(line); scored {
				last = info
				haveInfo = true
			}
			if best, ok := parseBestMove(line); ok {
				res := &Result{
					FEN:            req.FEN,
					RequestedDepth: req.Depth,
					BestMove:       best,
					Elapsed:        time.Since(start),
				}
				if haveInfo {
					res.Depth = last.Depth
					res.Nodes = last.Nodes
					res.ScoreCP = last.ScoreCP
					res.MateIn = last.MateIn
					res.PV = last.PV
				}
				normalizePerspective(res, req.FEN)
				return res, nil
			}
		}
	}
}

// normalizePerspective flips the score sign for black to move so all results
// read from white's point of view.
func normalizePerspective(res *Result, fen string) {
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		res.ScoreCP = -res.ScoreCP
		res.MateIn = -res.MateIn
	}
}

func (h *uciHandle) Healthy() bool { return h.healthy }

func (h *uciHandle) Close() {
	if h.healthy {
		_ = h.send("quit")
		h.healthy = false
		// Give the process a moment to exit cleanly, then make sure.
		done := make(chan struct{})
		go func() {
			for range h.lines {
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			h.kill()
		}
		return
	}
	h.kill()
}

func (h *uciHandle) send(cmd string) error {
	_, err := io.WriteString(h.stdin, cmd+"\n")
	return err
}

func (h *uciHandle) waitFor(token string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			h.kill()
			return fmt.Errorf("%w: no %q within %s", ErrEngineTimeout, token, timeout)
		case line, ok := <-h.lines:
			if !ok {
				h.healthy = false
				return fmt.Errorf("%w: output closed waiting for %q", ErrEngineCrashed, token)
			}
			if strings.HasPrefix(line, token) {
				return nil
			}
		}
	}
}

func (h *uciHandle) markCrashed() { h.healthy = false }

// kill terminates the subprocess immediately. A timed-out engine is never
// reused, and never left running in the background.
func (h *uciHandle) kill() {
	h.healthy = false
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}
