package timeline

import (
	"fmt"

	"github.com/wenyongqd/anniversary/internal/services"
)

var (
	ErrNotFound     = fmt.Errorf("%w: timeline entry", services.ErrNotFound)
	ErrNotEditable  = fmt.Errorf("%w: entry cannot be edited while an operation is in flight", services.ErrValidation)
	ErrBusy         = fmt.Errorf("%w: entry already has an operation in flight", services.ErrValidation)
	ErrNoSource     = fmt.Errorf("%w: entry has no uploaded source image", services.ErrValidation)
	ErrEmptyMessage = fmt.Errorf("%w: entry message is empty", services.ErrValidation)
	ErrDuplicateID  = fmt.Errorf("%w: duplicate entry id", services.ErrValidation)
	ErrNoGenerator  = fmt.Errorf("%w: no image generator configured", services.ErrConfiguration)
	ErrClosed       = fmt.Errorf("%w: timeline manager is closed", services.ErrValidation)
)
