package obslog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for a single backtest run,
// combining a wall-clock prefix with a random uuid so run logs sort
// roughly chronologically while staying globally unique.
func NewRunID() string {
	return fmt.Sprintf("run_%d_%s", time.Now().UnixNano(), uuid.NewString())
}
