package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/obslog"
)

const defaultReadyTimeout = 4 * time.Second

var ErrSessionClosed = errors.New("engine session closed")

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

// Score is reported by the engine relative to the side to move.
type Score struct {
	Mate  bool
	Value int
}

type Candidate struct {
	Move      string
	Score     Score
	Depth     int
	Principal []string
}

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{}
	limits Limits

	mu     sync.Mutex
	search sync.Mutex

	fen    string
	result *SearchResponse

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

func NewSession(ctx context.Context, binaryPath string, opt Options, limits Limits) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	if _, err := buildGoTokens(limits); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		limits: limits,
	}
	go s.pump(bufio.NewReader(stdoutPipe))

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// pump is the only reader of the engine's stdout; lines is closed on EOF.
func (s *Session) pump(r *bufio.Reader) {
	defer close(s.lines)
	for {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			select {
			case s.lines <- trimmed:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

type SearchRequest struct {
	FEN    string
	Limits Limits
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	Depth      int
}

// SetPosition loads a position for the next query and drops any cached search.
func (s *Session) SetPosition(ctx context.Context, fen string) error {
	s.search.Lock()
	defer s.search.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.fen = strings.TrimSpace(fen)
	s.result = nil
	return nil
}

// Evaluate returns the score of the principal line; a search without
// lines scores as 0 centipawns.
func (s *Session) Evaluate(ctx context.Context) (Score, error) {
	res, err := s.current(ctx)
	if err != nil {
		return Score{}, err
	}
	if len(res.Candidates) == 0 {
		return Score{}, nil
	}
	return res.Candidates[0].Score, nil
}

// BestMove returns the engine's chosen move in UCI notation, or "" when the
// position has no legal move.
func (s *Session) BestMove(ctx context.Context) (string, error) {
	res, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	return res.BestMove, nil
}

func (s *Session) TopMoves(ctx context.Context, n int) ([]Candidate, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if n < len(res.Candidates) {
		return append([]Candidate(nil), res.Candidates[:n]...), nil
	}
	return append([]Candidate(nil), res.Candidates...), nil
}

// current runs one search for the loaded position on first use.
func (s *Session) current(ctx context.Context) (SearchResponse, error) {
	s.search.Lock()
	cached := s.result
	fen := s.fen
	s.search.Unlock()
	if cached != nil {
		return *cached, nil
	}

	res, err := s.Search(ctx, SearchRequest{FEN: fen, Limits: s.limits})
	if err != nil {
		return SearchResponse{}, err
	}

	s.search.Lock()
	if s.fen == fen {
		s.result = &res
	}
	s.search.Unlock()
	return res, nil
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	positionCmd := buildPositionCommand(req.FEN)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}

	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	candidates := make(map[int]Candidate)
	depth := 0
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			obslog.L().Warn("uci search aborted",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err))
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := parseInfo(line); ok {
				candidates[mv] = cand
				if cand.Depth > depth {
					depth = cand.Depth
				}
			}
		case strings.HasPrefix(line, "bestmove"):
			var best string
			if parts := strings.Fields(line); len(parts) >= 2 && parts[1] != "(none)" && parts[1] != "0000" {
				best = parts[1]
			}
			return SearchResponse{Candidates: collapseCandidates(candidates), BestMove: best, Depth: depth}, nil
		}
	}
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MultiPV <= 0 {
		return fmt.Errorf("multipv must be > 0: %d", opt.MultiPV)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

// parseInfo extracts one ranked line from an info message. Bound scores
// from aspiration windows are skipped.
func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return 0, Candidate{}, false
	}
	var (
		multipv  = 1
		depth    int
		score    Score
		scoreSet bool
		pvIdx    = -1
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				depth, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil && (parts[i+1] == "cp" || parts[i+1] == "mate") {
					score = Score{Mate: parts[i+1] == "mate", Value: v}
					scoreSet = true
				}
				i += 2
			}
		case "lowerbound", "upperbound":
			return 0, Candidate{}, false
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) || !scoreSet {
		return 0, Candidate{}, false
	}
	principal := parts[pvIdx:]

	cand := Candidate{
		Move:      principal[0],
		Score:     score,
		Depth:     depth,
		Principal: append([]string(nil), principal...),
	}
	return multipv, cand, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

// EnsureReady waits for the engine to answer isready.
func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Close terminates the engine process. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.stdin != nil {
			_, _ = io.WriteString(s.stdin, "quit\n")
			s.stdin.Close()
		}
		s.mu.Unlock()

		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		if s.cmd != nil {
			s.closeErr = s.cmd.Wait()
			var exitErr *exec.ExitError
			if errors.As(s.closeErr, &exitErr) {
				s.closeErr = nil
			}
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}
	return s.EnsureReady(initCtx)
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", ErrSessionClosed
		}
		return line, nil
	}
}
