package types

import (
	"fmt"
)

type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	NotFoundErr          ConstError = "not found"
	CorruptErr           ConstError = "corrupt"
	FullErr              ConstError = "no free space"
	InvalidNameErr       ConstError = "invalid name"
	AlreadyExistsErr     ConstError = "already exists"
	ReadOnlyErr          ConstError = "read only"
	UnsupportedErr       ConstError = "unsupported"
	CapacityExceededErr  ConstError = "capacity exceeded"
	DirectoryNotEmptyErr ConstError = "directory not empty"
)

var (
	// DataFullErr and DescriptorFullErr both match FullErr with errors.Is.
	DataFullErr       = fmt.Errorf("file data: %w", FullErr)
	DescriptorFullErr = fmt.Errorf("descriptor block: %w", FullErr)
)

// CRCErr reports a checksum mismatch in an encoded field.
type CRCErr struct {
	Field  string
	Wanted uint16
	Found  uint16
}

func (err *CRCErr) Error() string {
	return fmt.Sprintf(
		"%s crc mismatch: wanted `0x%04X`; found `0x%04X`",
		err.Field,
		err.Wanted,
		err.Found,
	)
}

func (err *CRCErr) Unwrap() error { return CorruptErr }

type ErrBadSignature struct {
	Wanted string
	Found  []byte
}

func (err *ErrBadSignature) Error() string {
	return fmt.Sprintf(
		"bad signature: wanted `%q`; found `%q`",
		err.Wanted,
		err.Found,
	)
}

func (err *ErrBadSignature) Unwrap() error { return CorruptErr }
