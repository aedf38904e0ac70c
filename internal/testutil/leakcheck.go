// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"go.uber.org/goleak"
)

// VerifyNoLeaks should be deferred at the start of tests that spawn goroutines.
func VerifyNoLeaks(t *testing.T, opts ...goleak.Option) {
	t.Helper()
	goleak.VerifyNone(t, opts...)
}

// IgnoreDatabaseGoroutines skips the connection opener database/sql keeps per open *sql.DB.
func IgnoreDatabaseGoroutines() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	}
}
