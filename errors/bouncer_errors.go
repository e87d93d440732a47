// errors/bouncer_errors.go
package errors

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid authorization request")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrPolicyDenied      = errors.New("denied by security policy")
	ErrSyncFailed        = errors.New("policy sync failed")
	ErrInvalidBundle     = errors.New("invalid policy bundle")
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrSourceNotFound    = errors.New("context source not found")
	ErrUnsupportedSource = errors.New("unsupported context source type")
	ErrInvalidRulesFile  = errors.New("invalid security rules file")
	ErrInvalidSourcePath = errors.New("invalid context source path")
	ErrInternalServer    = errors.New("internal server error")
	ErrUnauthorized      = errors.New("unauthorized")
)
