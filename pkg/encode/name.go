package encode

import (
	"fmt"
	"strings"

	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	NameSize Byte = 10

	// Separator joins path components; it can never appear in a name.
	Separator = '.'
)

// ValidateName checks a file or directory name. Names are case-sensitive.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("validating name: empty name: %w", InvalidNameErr)
	}
	if len(name) > int(NameSize) {
		return fmt.Errorf(
			"validating name `%s`: longer than `%d` characters: %w",
			name,
			NameSize,
			InvalidNameErr,
		)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c == Separator || c <= ' ' || c > '~' {
			return fmt.Errorf(
				"validating name `%s`: invalid character `%q` at `%d`: %w",
				name,
				c,
				i,
				InvalidNameErr,
			)
		}
	}
	return nil
}

func putName(b []byte, start Byte, name string) {
	field := b[start : start+NameSize]
	for i := range field {
		field[i] = ' '
	}
	copy(field, name)
}

func getName(b []byte, start Byte) string {
	return strings.TrimRight(string(b[start:start+NameSize]), " \x00")
}

// PutName writes `name` space-padded into a 10-byte field.
func PutName(b []byte, start Byte, name string) { putName(b, start, name) }

func GetName(b []byte, start Byte) string { return getName(b, start) }
