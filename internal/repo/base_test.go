package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

type ctxKey struct{}

func TestBaseDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestRebindKeepsReceiverForNilTx(t *testing.T) {
	db := newTestDB(t)
	other := newTestDB(t)
	base := NewBase(db)

	if base.Rebind(nil).db != db {
		t.Fatalf("nil tx must keep the original connection")
	}
	if base.Rebind(other).db != other {
		t.Fatalf("expected rebind to use the transaction handle")
	}
}

func TestForUpdateAddsLockingClause(t *testing.T) {
	base := NewBase(newTestDB(t))
	stmt := base.ForUpdate(context.Background()).Statement

	c, ok := stmt.Clauses["FOR"]
	if !ok {
		t.Fatalf("expected FOR clause, got %v", stmt.Clauses)
	}
	locking, ok := c.Expression.(clause.Locking)
	if !ok || locking.Strength != clause.LockingStrengthUpdate {
		t.Fatalf("expected FOR UPDATE, got %#v", c.Expression)
	}
}
