package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
	ErrTurnFailed     = errors.New("turn failed")
	ErrNoProvider     = errors.New("no language model provider available")
	ErrModelGone      = errors.New("model endpoint gone")
	ErrUnindexedField = errors.New("predicate references unindexed field")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
