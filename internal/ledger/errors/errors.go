package errors

import "errors"

// Sentinel failure kinds of the ledger. The service layer wraps these in
// *apperrors.AppError so handlers map them to HTTP statuses while callers
// and tests can still match with errors.Is.
var (
	ErrNotFound  = errors.New("booking not found")
	ErrInvalidID = errors.New("invalid booking ID format")

	ErrWrongStatus = errors.New("booking status does not permit this operation")

	ErrRangeUnavailable = errors.New("requested date range is unavailable")
	ErrNoticeViolation  = errors.New("booking start violates minimum notice")
	ErrWindowViolation  = errors.New("booking violates the booking window policy")

	ErrRentAlreadyPaid = errors.New("booking has received rent and cannot be cancelled")

	ErrNoPendingSplit  = errors.New("no pending deposit split")
	ErrAlreadyReleased = errors.New("deposit already released")
	ErrInvalidApproval = errors.New("approval does not match the pending proposal")

	ErrAlreadyTokenised = errors.New("booking is already tokenised")
	ErrNotTokenised     = errors.New("booking is not tokenised")
	ErrNotProposed      = errors.New("no tokenisation proposal to approve")
	ErrOversubscribed   = errors.New("share purchase exceeds the remaining supply")
	ErrPolicyViolation  = errors.New("raise is inconsistent with the booking's expected rent")

	ErrNothingToClaim = errors.New("caller holds no position in this booking")
)
