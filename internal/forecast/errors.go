package forecast

import "errors"

// ErrInvalidConfig is returned when a run has no valid forecast window or rates.
// No ledger is produced alongside it.
var ErrInvalidConfig = errors.New("invalid forecast configuration")
