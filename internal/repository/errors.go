// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the ledger to distinguish between different failure
// scenarios.
package repository

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
)

// ErrConflict is returned when an insert or update collides with a unique
// key, such as a freshly generated referral code that already exists.
// Callers retry with a new value or translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrCreditNotFound is returned when a featured credit id does not exist.
// It matches ledger.ErrNotFound so the ledger can classify it without
// importing this package's types.
var ErrCreditNotFound = fmt.Errorf("featured credit: %w", ledger.ErrNotFound)

// ErrReferralNotFound is returned when a referral event code is unknown or
// already attributed.
var ErrReferralNotFound = errors.New("referral not found")

// ErrProfileNotFound is returned when a profile id or share code is unknown.
var ErrProfileNotFound = errors.New("profile not found")

// ErrNoChange is returned when a conditional update matched no row.
var ErrNoChange = errors.New("no change")

// isDuplicateKey reports whether err is MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
