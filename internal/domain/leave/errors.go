package leave

import "errors"

var (
	ErrLeaveRequestNotFound         = errors.New("leave request not found")
	ErrLeaveRequestAlreadyProcessed = errors.New("leave request already processed")

	// Policy violations at submission
	ErrExceedsMaxDays        = errors.New("leave request exceeds maximum days allowed for this type")
	ErrDocumentationRequired = errors.New("supporting documentation is required for this leave type")
)
