package archive

import (
	"bytes"
	"compress/lzw"
	"fmt"
	"io"

	. "github.com/weberc2/tidisk/pkg/types"
)

// Compressor packs and unpacks a whole archive blob.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// LZW is the default Compressor: 8-bit literals, MSB-first codes.
type LZW struct{}

func (LZW) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress stops at the end code, so sector padding after the compressed
// stream is ignored.
func (LZW) Decompress(data []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive: %w: %w", CorruptErr, err)
	}
	return out, nil
}
