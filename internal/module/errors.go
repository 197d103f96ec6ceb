package module

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound is matched by every NotFoundError.
	ErrModuleNotFound = errors.New("module not found")
	// ErrMissingLicense is matched by every MissingLicenseError.
	ErrMissingLicense = errors.New("module lacks a license")
)

// NotFoundError reports a requested or depended-on module that is absent
// from every module directory.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %s does not exist", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// MissingLicenseError reports a non-tests module without a License section.
type MissingLicenseError struct {
	Name string
}

func (e *MissingLicenseError) Error() string {
	return fmt.Sprintf("module %s lacks a License", e.Name)
}

func (e *MissingLicenseError) Is(target error) bool {
	return target == ErrMissingLicense
}
