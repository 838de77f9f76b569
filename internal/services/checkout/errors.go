package checkout

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrScholarshipNotFound = errors.New("scholarship not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationNotOwned = errors.New("application belongs to another student")
	ErrScholarshipRequired = errors.New("fee requires an application or scholarship")
	ErrInvalidDependents   = errors.New("dependents must not be negative")
	ErrApplicationMismatch = errors.New("application does not match scholarship")
)
