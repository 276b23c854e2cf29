package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirychukyurii/faculty-scheduler/internal/directory"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// ExternalFailure maps a failed collaborator call to a fail-closed rejection
func ExternalFailure(err error) Result {
	kind := model.KindExternalDependencyFailure

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Rejected(kind, model.CodeTimeout, "admission deadline exceeded")
	case errors.Is(err, context.Canceled):
		return Rejected(kind, model.CodeTimeout, "admission cancelled")
	case errors.Is(err, directory.ErrEmptyBody):
		return Rejected(kind, model.CodeInvalidBody, err.Error())
	case errors.Is(err, directory.ErrBadStatus):
		return Rejected(kind, model.CodeBadRequest, err.Error())
	default:
		return Rejected(kind, model.CodeBadRequest, fmt.Sprintf("external call failed: %v", err))
	}
}
