package wire

import "encoding/binary"

// DecodeFrame parses the first complete frame in buf and returns it together
// with the number of bytes it consumed. It returns ErrIncompleteFrame when
// buf is shorter than the declared total frame length, which also covers the
// header's own variable-length fields. The returned payload is a copy,
// already unmasked when the frame carries a mask.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncompleteFrame
	}

	frame := &Frame{
		Final:  buf[0]&0x80 != 0,
		Opcode: Opcode(buf[0] & 0x0F),
		Masked: buf[1]&0x80 != 0,
	}

	length := uint64(buf[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(buf) < offset+2 {
			return nil, 0, ErrIncompleteFrame
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return nil, 0, ErrIncompleteFrame
		}
		// The most significant bit is reserved and ignored.
		length = binary.BigEndian.Uint64(buf[offset:]) &^ (1 << 63)
		offset += 8
	}

	if length > MaxFramePayload {
		return nil, 0, ErrFrameTooLarge
	}

	if frame.Masked {
		if len(buf) < offset+4 {
			return nil, 0, ErrIncompleteFrame
		}
		copy(frame.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(buf) < total {
		return nil, 0, ErrIncompleteFrame
	}

	frame.Payload = make([]byte, length)
	copy(frame.Payload, buf[offset:total])
	if frame.Masked {
		for i := range frame.Payload {
			frame.Payload[i] ^= frame.MaskKey[i%4]
		}
	}

	return frame, total, nil
}

// EncodeText serializes payload as a single unmasked FIN text frame, the only
// data frame this server sends. The minimal length-prefix form is chosen for
// the payload size.
func EncodeText(payload []byte) []byte {
	return encodeServerFrame(OpText, payload)
}

// EncodePong serializes a pong frame echoing payload. Ping auto-replies use
// an empty payload.
func EncodePong(payload []byte) []byte {
	return encodeServerFrame(OpPong, payload)
}

// EncodeClose serializes an empty close frame.
func EncodeClose() []byte {
	return encodeServerFrame(OpClose, nil)
}

func encodeServerFrame(op Opcode, payload []byte) []byte {
	n := len(payload)

	var header []byte
	switch {
	case n < 126:
		header = []byte{0x80 | byte(op), byte(n)}
	case n <= 0xFFFF:
		header = []byte{0x80 | byte(op), 126, 0, 0}
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = 0x80 | byte(op)
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	out := make([]byte, 0, len(header)+n)
	out = append(out, header...)
	out = append(out, payload...)
	return out
}
