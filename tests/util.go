package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/core/user"
	"github.com/trezcool/eicr/storage/database"
)

// Entry is a log entry recorded by Logger.
type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries in memory.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Messages returns the messages logged at level, in order.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

var gooseOnce sync.Once

// PrepareDB opens a migrated SQLite database living in the test's temp dir.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	gooseOnce.Do(func() { goose.SetLogger(goose.NopLogger()) })

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// ResetDB deletes all rows, children first.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range []string{"observations", "inspection_items", "inspections", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Catalogue returns a small catalogue of two sections:
//
//	s1: i1, i2, i3
//	s2: i4, i5
func Catalogue(t *testing.T) *checklist.Catalogue {
	t.Helper()
	cat, err := checklist.New(checklist.Document{
		Version: "test",
		Sections: []checklist.Section{
			{ID: "s1", Number: "1", Title: "Intake", Items: []checklist.ItemDefinition{
				{ID: "i1", Number: "1.1", Item: "Service cable", Clause: "132.12"},
				{ID: "i2", Number: "1.2", Item: "Meter tails", Clause: "521.10.1"},
				{ID: "i3", Number: "1.3", Item: "Isolator", Clause: "537.2.1.1"},
			}},
			{ID: "s2", Number: "2", Title: "Earthing", Items: []checklist.ItemDefinition{
				{ID: "i4", Number: "2.1", Item: "Earthing conductor", Clause: "542.3"},
				{ID: "i5", Number: "2.2", Item: "RCD protection", Clause: "411.3.3"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Catalogue() failed: %v", err)
	}
	return cat
}
