// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. Every
// "not found" error wraps ErrNotFound so callers can test for the family
// with errors.Is, while SeatsUnavailableError carries the conflicting
// seat labels of a rejected reservation.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is the parent of all lookup failures. Handlers translate
// it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

var (
	ErrShowNotFound    = fmt.Errorf("show %w", ErrNotFound)
	ErrMovieNotFound   = fmt.Errorf("movie %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// ErrSeatsUnavailable is matched by every SeatsUnavailableError.
var ErrSeatsUnavailable = errors.New("seats unavailable")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as creating a show slot that already exists
// for the same movie and start time. Handlers translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// SeatsUnavailableError reports the requested seats that are already held.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return "seats unavailable: " + strings.Join(e.Seats, ", ")
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

// isDuplicateKey reports whether err is MySQL error 1062.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
