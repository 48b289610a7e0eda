// Package notifications reports batch outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Delivery
// errors are returned to the caller, which logs them; a failed notification
// never fails a batch.
package notifications
