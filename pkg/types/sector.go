package types

import "fmt"

const SectorSize Byte = 256

// Sector is a value type: copying it copies the content.
type Sector struct {
	Number     uint32
	Content    [SectorSize]byte
	Generation uint32
}

func NewSector(number uint32, content []byte) Sector {
	s := Sector{Number: number}
	copy(s.Content[:], content)
	return s
}

func (s *Sector) IsZero() bool {
	for _, b := range s.Content {
		if b != 0 {
			return false
		}
	}
	return true
}

func (s Sector) String() string {
	return fmt.Sprintf("sector %d (generation %d)", s.Number, s.Generation)
}
