package types

import (
	"fmt"
	"strings"
)

// FileFlags is the status byte of a file descriptor block.
type FileFlags uint8

const (
	FlagProgram   FileFlags = 0x01
	FlagInternal  FileFlags = 0x02
	FlagEmulate   FileFlags = 0x04
	FlagProtected FileFlags = 0x08
	FlagModified  FileFlags = 0x10
	FlagVariable  FileFlags = 0x80
)

func (f FileFlags) Program() bool   { return f&FlagProgram != 0 }
func (f FileFlags) Internal() bool  { return f&FlagInternal != 0 }
func (f FileFlags) Protected() bool { return f&FlagProtected != 0 }
func (f FileFlags) Variable() bool  { return f&FlagVariable != 0 }

// TypeString renders the flags the way the TI file manager lists them, e.g.
// `PROGRAM` or `DIS/VAR 80`.
func (f FileFlags) TypeString(recordLength uint8) string {
	if f.Program() {
		return "PROGRAM"
	}
	var sb strings.Builder
	if f.Internal() {
		sb.WriteString("INT/")
	} else {
		sb.WriteString("DIS/")
	}
	if f.Variable() {
		sb.WriteString("VAR")
	} else {
		sb.WriteString("FIX")
	}
	fmt.Fprintf(&sb, " %d", recordLength)
	return sb.String()
}

// ParseFileType is the inverse of TypeString.
func ParseFileType(s string) (FileFlags, uint8, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "PROGRAM" {
		return FlagProgram, 0, nil
	}
	var format, kind string
	var recordLength int
	if _, err := fmt.Sscanf(
		strings.Replace(s, "/", " ", 1),
		"%s %s %d",
		&format,
		&kind,
		&recordLength,
	); err != nil {
		return 0, 0, fmt.Errorf("parsing file type `%s`: %w", s, err)
	}
	var flags FileFlags
	switch format {
	case "DIS":
	case "INT":
		flags |= FlagInternal
	default:
		return 0, 0, fmt.Errorf("parsing file type `%s`: bad format `%s`", s, format)
	}
	switch kind {
	case "FIX":
	case "VAR":
		flags |= FlagVariable
	default:
		return 0, 0, fmt.Errorf("parsing file type `%s`: bad record kind `%s`", s, kind)
	}
	if recordLength < 1 || recordLength > 255 {
		return 0, 0, fmt.Errorf(
			"parsing file type `%s`: record length `%d` out of range",
			s,
			recordLength,
		)
	}
	return flags, uint8(recordLength), nil
}
