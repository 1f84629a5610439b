package enroll

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentity is returned when the identity already has a reference asset.
	ErrDuplicateIdentity = errors.New("identity already enrolled")

	// ErrNoFaceDetected is returned when the capture budget ends without a usable face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrStorageWrite is returned when the reference asset could not be written.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrNoAddress is returned when the identity's record has no delivery address.
	ErrNoAddress = errors.New("record has no email address")
)

// DuplicateIdentityError names the existing asset.
type DuplicateIdentityError struct {
	IdentityID string
	Path       string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("identity %s already enrolled (%s)", e.IdentityID, e.Path)
}

func (e *DuplicateIdentityError) Unwrap() error { return ErrDuplicateIdentity }

// StorageWriteError reports a failed asset write.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() []error { return []error{ErrStorageWrite, e.Err} }
