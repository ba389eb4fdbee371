package handlers

// Error codes sent in ErrorResponse.Code. Clients branch on these, so they
// never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	ErrCodeListFailed  = "list_failed"
	ErrCodeStatsFailed = "stats_failed"
)
