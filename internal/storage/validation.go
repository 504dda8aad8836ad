package storage

import (
	"context"
	"fmt"

	"github.com/hearthledger/hearthledger/internal/common"
)

// validateID rejects empty identifiers before they reach a query.
func validateID(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", common.ErrInvalidInput, name)
	}
	return nil
}

// validateContext rejects nil contexts at the storage boundary.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context must not be nil", common.ErrInvalidInput)
	}
	return nil
}
