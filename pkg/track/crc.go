package track

import "github.com/snksoft/crc"

// CRC-16/CCITT, initial value 0xFFFF, as computed by the floppy controller
// over the address mark and the field that follows it.
var crcTable = crc.NewTable(crc.CCITT)

func CRC(parts ...[]byte) uint16 {
	c := crcTable.InitCrc()
	for _, p := range parts {
		c = crcTable.UpdateCrc(c, p)
	}
	return crcTable.CRC16(c)
}
