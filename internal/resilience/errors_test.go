package resilience

import (
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(eris.New("flaky")), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("flaky")), "store"), true},
		{"sqlite busy", eris.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"sqlite table lock", eris.New("database table is locked"), true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", eris.Wrap(syscall.ECONNREFUSED, "dial"), true},
		{"broken pipe text", eris.New("write: broken pipe"), true},
		{"io timeout text", eris.New("read tcp: i/o timeout"), true},
		{"pool conn closed", eris.New("conn closed"), true},
		{"constraint violation", eris.New("UNIQUE constraint failed: arms.id"), false},
		{"not found", eris.New("arm not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientPostgresCodes(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"40001", true}, // serialization_failure
		{"40P01", true}, // deadlock_detected
		{"55P03", true}, // lock_not_available
		{"08006", true}, // connection_failure
		{"53300", true}, // too_many_connections
		{"23505", false}, // unique_violation
		{"42601", false}, // syntax_error
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &pgconn.PgError{Code: tt.code, Message: "boom"}
			assert.Equal(t, tt.want, IsTransient(err))
		})
	}
}
