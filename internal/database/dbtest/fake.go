// Package dbtest provides an in-memory database.Executor for tests.
package dbtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/h3tiles/server/internal/query"
)

// Fake records statements and answers them with canned values.
type Fake struct {
	// Tile is scanned into *[]byte destinations.
	Tile []byte
	// Count is scanned into *int64 destinations.
	Count int64
	// Err, when set, is returned instead of a value.
	Err error
	// Gate, when set, blocks every call until it is closed.
	Gate chan struct{}

	mu    sync.Mutex
	stmts []query.Statement
}

// Scalar implements database.Executor.
func (f *Fake) Scalar(ctx context.Context, stmt query.Statement, dest any) error {
	f.mu.Lock()
	f.stmts = append(f.stmts, stmt)
	f.mu.Unlock()

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Err != nil {
		return f.Err
	}

	switch d := dest.(type) {
	case *[]byte:
		*d = f.Tile
	case *int64:
		*d = f.Count
	default:
		return fmt.Errorf("dbtest: unsupported destination %T", dest)
	}
	return nil
}

// Calls returns how many statements were executed.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stmts)
}

// Statements returns a copy of the executed statements.
func (f *Fake) Statements() []query.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query.Statement(nil), f.stmts...)
}
