package port

import (
	"errors"
	"fmt"
)

var (
	// errInsufficientBuffer is returned by a tableQuery when the supplied
	// buffer is smaller than the table.
	errInsufficientBuffer = errors.New("table buffer too small")

	// errNoData means the size probe reported an empty table.
	errNoData = errors.New("no table data")
)

// maxTableAttempts bounds the probe/fill cycle when the table keeps growing
// between the two calls.
const maxTableAttempts = 3

// tableQuery asks the OS for one connection table. A nil buf is a size
// probe. On return size holds the size the OS needs or has written.
type tableQuery func(buf []byte, size *uint32) error

// fillTable runs the probe/fill cycle for query, starting over when the fill
// reports errInsufficientBuffer. Any other failure ends the cycle.
func fillTable(query tableQuery) ([]byte, error) {
	for attempt := 1; attempt <= maxTableAttempts; attempt++ {
		var size uint32
		// The probe status is not meaningful on its own; the reported size is.
		_ = query(nil, &size)
		if size == 0 {
			return nil, errNoData
		}

		buf := make([]byte, size)
		err := query(buf, &size)
		switch {
		case err == nil:
			return buf, nil
		case errors.Is(err, errInsufficientBuffer):
			log.Debug("connection table grew between probe and fill", "attempt", attempt, "size", size)
			continue
		default:
			return nil, fmt.Errorf("failed to fill connection table: %w", err)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", errInsufficientBuffer, maxTableAttempts)
}
