package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

const fakeEngineEnv = "UCI_FAKE_ENGINE_MODE"

// TestMain lets the test binary double as a scripted UCI engine when
// re-executed with fakeEngineEnv set.
func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeEngineEnv); mode != "" {
		runFakeEngine(mode)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func fakeEnginePath(t *testing.T, mode string) string {
	t.Helper()
	t.Setenv(fakeEngineEnv, mode)
	path, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	return path
}

func runFakeEngine(mode string) {
	in := bufio.NewScanner(os.Stdin)
	multipv := 1
	candidates := []string{"e2e4", "d2d4", "g1f3", "c2c4"}
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "uci":
			if mode == "silent" {
				continue
			}
			fmt.Println("id name FakeFish")
			fmt.Println("uciok")
		case line == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(line, "setoption name MultiPV value "):
			multipv, _ = strconv.Atoi(strings.TrimPrefix(line, "setoption name MultiPV value "))
		case strings.HasPrefix(line, "go"):
			switch mode {
			case "crash":
				os.Exit(3)
			case "hang":
				continue
			case "terminal":
				fmt.Println("info depth 0 score mate 0")
				fmt.Println("bestmove (none)")
			case "mate":
				fmt.Println("info depth 20 seldepth 4 multipv 1 score mate -2 nodes 100 pv g8f6 d1h5")
				fmt.Println("bestmove g8f6")
			default:
				fmt.Println("info depth 5 seldepth 6 multipv 1 score cp 10 lowerbound nodes 10 pv e2e4")
				for i := 0; i < multipv && i < len(candidates); i++ {
					fmt.Printf("info depth 12 seldepth 14 multipv %d score cp %d nodes 1000 nps 1 pv %s e7e5\n", i+1, 35-i*10, candidates[i])
				}
				fmt.Println("bestmove e2e4 ponder e7e5")
			}
		case line == "quit":
			return
		}
	}
}
