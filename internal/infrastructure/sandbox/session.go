// Package sandbox runs model-written snippets against the active dataset.
//
// Snippets are Starlark, a Python dialect, so the model's habits carry over:
// the dataset is bound to df with a pandas-flavoured API, math, json and
// stats are predeclared, and plt records charts when a figure is attached.
package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	snippetFile   = "<snippet>"
	lastValueName = "_sandbox_last_value"

	NoOutputMessage = "The code ran without errors but produced no output. Use print() to show the values you need."
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

var reservedNames = map[string]bool{
	"df": true, "math": true, "json": true, "stats": true, "plt": true,
}

type Config struct {
	// MaxSteps bounds the Starlark steps of one snippet; zero means unbounded.
	MaxSteps uint64
}

// Session owns the namespace snippets run in. The namespace is bound to one
// dataset: globals assigned by one snippet are visible to the next until
// Reset swaps the dataset.
//
// A session serves one writer at a time; Execute holds a lock for the whole
// run so overlapping callers queue instead of interleaving.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	logger  output.LoggerPort
	dataset *entity.Dataset
	globals starlark.StringDict
}

func NewSession(ds *entity.Dataset, cfg Config, logger output.LoggerPort) (*Session, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset loaded", entity.ErrConfiguration)
	}
	s := &Session{cfg: cfg, logger: logger}
	s.bind(ds)
	return s, nil
}

// Reset discards the namespace and starts a fresh one seeded with ds.
func (s *Session) Reset(ds *entity.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: no dataset loaded", entity.ErrConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bind(ds)
	s.logger.Info("Sandbox namespace reset", "dataset", ds.Name, "rows", ds.NumRows(), "cols", ds.NumCols())
	return nil
}

func (s *Session) bind(ds *entity.Dataset) {
	s.dataset = ds
	s.globals = starlark.StringDict{
		"df":    newFrame(ds),
		"math":  starmath.Module,
		"json":  starjson.Module,
		"stats": statsModule,
		"plt":   pltModule(nil),
	}
}

func (s *Session) Dataset() *entity.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset
}

// Names lists the globals snippets have defined, sorted.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.globals {
		if !reservedNames[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Execute runs code in the session namespace and reports what it printed.
// Failures come back as observations with Err set; Execute never panics on
// bad snippets and never returns them as Go errors.
func (s *Session) Execute(ctx context.Context, code string) entity.Observation {
	return s.run(ctx, code, nil)
}

// ExecuteWithFigure runs code with plt drawing on fig.
func (s *Session) ExecuteWithFigure(ctx context.Context, code string, fig *Figure) entity.Observation {
	return s.run(ctx, code, fig)
}

func (s *Session) run(ctx context.Context, code string, fig *Figure) entity.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return s.failure(&ExecError{Kind: KindCancelled, Message: err.Error()}, "")
	}

	code = CleanCode(code)
	if code == "" {
		return s.failure(&ExecError{Kind: KindSyntax, Message: "no code to execute"}, "")
	}

	f, err := fileOptions.Parse(snippetFile, code, 0)
	if err != nil {
		return s.failure(classify(err), "")
	}
	echo := captureLastExpression(f)

	var out strings.Builder
	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteByte('\n')
		},
	}
	if s.cfg.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(s.cfg.MaxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	s.globals["plt"] = pltModule(fig)
	err = execChunk(f, thread, s.globals)
	s.globals["plt"] = pltModule(nil)

	last := s.globals[lastValueName]
	delete(s.globals, lastValueName)

	printed := strings.TrimRight(out.String(), "\n")
	if err != nil {
		return s.failure(classify(err), printed)
	}

	switch {
	case printed != "":
		return entity.TextObservation(printed)
	case echo && last != nil && last != starlark.None:
		return entity.TextObservation(last.String())
	default:
		return entity.TextObservation(NoOutputMessage)
	}
}

func (s *Session) failure(execErr *ExecError, printed string) entity.Observation {
	s.logger.Debug("Snippet failed", "kind", execErr.Kind, "error", execErr.Message)
	text := execErr.Report()
	if printed != "" {
		text = printed + "\n" + text
	}
	return entity.ErrorObservation(text, execErr)
}

// execChunk runs f and reports a panic inside a builtin as a runtime
// failure of the snippet.
func execChunk(f *syntax.File, thread *starlark.Thread, globals starlark.StringDict) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecError{Kind: KindRuntime, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return starlark.ExecREPLChunk(f, thread, globals)
}

// captureLastExpression rewrites a trailing bare expression into an
// assignment so its value can be echoed like a REPL would.
func captureLastExpression(f *syntax.File) bool {
	if len(f.Stmts) == 0 {
		return false
	}
	last, ok := f.Stmts[len(f.Stmts)-1].(*syntax.ExprStmt)
	if !ok {
		return false
	}
	start, _ := last.X.Span()
	f.Stmts[len(f.Stmts)-1] = &syntax.AssignStmt{
		OpPos: start,
		Op:    syntax.EQ,
		LHS:   &syntax.Ident{NamePos: start, Name: lastValueName},
		RHS:   last.X,
	}
	return true
}
