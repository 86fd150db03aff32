// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"fmt"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Words is a SPIR-V module as 32-bit words.
type Words []uint32

// Bytes serialises the words in the given byte order: 4 bytes per word,
// no header.
func (w Words) Bytes(order binary.ByteOrder) []byte {
	out := make([]byte, len(w)*4)
	for i, word := range w {
		order.PutUint32(out[i*4:], word)
	}
	return out
}

// NativeBytes serialises the words in the host byte order.
func (w Words) NativeBytes() []byte {
	return w.Bytes(binary.NativeEndian)
}

// WordsFromBytes decodes a byte stream of 32-bit words in the given order.
// The length must be a multiple of 4.
func WordsFromBytes(b []byte, order binary.ByteOrder) (Words, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: word stream length %d is not a multiple of 4", len(b))
	}
	w := make(Words, len(b)/4)
	for i := range w {
		w[i] = order.Uint32(b[i*4:])
	}
	return w, nil
}
