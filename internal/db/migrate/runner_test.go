package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"identity-service/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, Up, 0)
		if err == nil {
			t.Fatalf("Run(%q) should return error", dsn)
		}
		if !strings.HasPrefix(err.Error(), "DATABASE_URL is not set") {
			t.Errorf("error message = %q, want DATABASE_URL hint", err.Error())
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Down"} {
		t.Run(direction, func(t *testing.T) {
			// The DSN is unreachable, so either the connection or the direction check fails;
			// both must be errors.
			if err := Run("postgres://invalid-host-that-does-not-exist:5432/db?connect_timeout=1", direction, 0); err == nil {
				t.Errorf("Run with direction %q should return error", direction)
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, Up, 0); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
		if errors.Is(Run(dsn, Up, 0), ErrNoChange) {
			t.Errorf("Run should never surface ErrNoChange")
		}
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	if _, _, err := Version(""); err == nil {
		t.Fatal("Version with empty DSN should return error")
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("migrations: %d up, %d down; want equal and non-zero", ups, downs)
	}
}
