// Package scripttest drives rsc.io/script over *.txt scenario files under
// tests/scripts: each file is a sequence of `cypher <stmt>` / `expect
// <substring>` lines, plus `begin`/`commit`/`rollback` for an explicit
// transaction, run against a fresh, per-file graph database.
package scripttest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsc.io/script"

	"github.com/graphdb/core/internal/config"
	"github.com/graphdb/core/internal/engine"
)

// Run executes every *.txt file in dir as its own subtest.
func Run(t *testing.T, dir string) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("scripttest: glob %s: %v", dir, err)
	}
	if len(files) == 0 {
		t.Fatalf("scripttest: no script files found in %s", dir)
	}
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".txt")
		t.Run(name, func(t *testing.T) { runFile(t, f) })
	}
}

// testLog adapts *testing.T into an io.Writer for the script engine's log.
type testLog struct{ t *testing.T }

func (l testLog) Write(p []byte) (int, error) {
	l.t.Helper()
	l.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func runFile(t *testing.T, path string) {
	t.Helper()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("scripttest: read %s: %v", path, err)
	}

	workdir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(workdir, "db")
	cfg.MapSizeMB = 16

	eng, err := engine.Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("scripttest: open engine: %v", err)
	}
	defer eng.Close()

	var lastOutput string
	var tx *engine.Transaction

	cypherCmd := script.Command(
		script.CmdUsage{
			Summary: "run one Cypher statement against the scenario's database",
			Args:    "statement...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			stmt := strings.Join(args, " ")
			var rs engine.ResultSet
			var err error
			if tx != nil {
				rs, err = tx.Execute(stmt, nil)
			} else {
				rs, err = eng.ExecuteCypher(context.Background(), stmt, nil)
			}
			var out string
			if err == nil {
				out = formatResultSet(rs)
				lastOutput = out
			}
			return func(*script.State) (stdout, stderr string, waitErr error) {
				return out, "", err
			}, nil
		},
	)

	beginCmd := script.Command(
		script.CmdUsage{Summary: "open an explicit multi-statement write transaction"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			t, err := eng.BeginTransaction(context.Background())
			if err != nil {
				return nil, err
			}
			tx = t
			return func(*script.State) (string, string, error) { return "", "", nil }, nil
		},
	)

	commitCmd := script.Command(
		script.CmdUsage{Summary: "commit the open explicit transaction"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if tx == nil {
				return nil, fmt.Errorf("commit: no open transaction")
			}
			err := tx.Commit()
			tx = nil
			return func(*script.State) (string, string, error) { return "", "", nil }, err
		},
	)

	rollbackCmd := script.Command(
		script.CmdUsage{Summary: "roll back the open explicit transaction"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if tx == nil {
				return nil, fmt.Errorf("rollback: no open transaction")
			}
			err := tx.Rollback()
			tx = nil
			return func(*script.State) (string, string, error) { return "", "", nil }, err
		},
	)

	expectCmd := script.Command(
		script.CmdUsage{
			Summary: "assert the previous cypher command's output contains a substring",
			Args:    "substring...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			want := strings.Join(args, " ")
			if !strings.Contains(lastOutput, want) {
				return nil, fmt.Errorf("expected output to contain %q, got %q", want, lastOutput)
			}
			return func(*script.State) (string, string, error) { return "", "", nil }, nil
		},
	)

	state, err := script.NewState(context.Background(), workdir, os.Environ())
	if err != nil {
		t.Fatalf("scripttest: new state: %v", err)
	}
	defer state.CloseAndWait(testLog{t})

	eng2 := &script.Engine{
		Cmds: map[string]script.Cmd{
			"cypher":   cypherCmd,
			"expect":   expectCmd,
			"begin":    beginCmd,
			"commit":   commitCmd,
			"rollback": rollbackCmd,
		},
	}

	if err := eng2.Execute(state, filepath.Base(path), bufio.NewReader(strings.NewReader(string(contents))), testLog{t}); err != nil {
		t.Fatalf("scripttest: %s: %v", path, err)
	}
}

func formatResultSet(rs engine.ResultSet) string {
	var b strings.Builder
	for _, row := range rs.Rows {
		for i, c := range rs.Columns {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(row[c].String())
		}
		b.WriteString("\n")
	}
	return b.String()
}
