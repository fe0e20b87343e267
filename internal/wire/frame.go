// Package wire implements the WebSocket wire protocol by hand: the frame
// codec and the HTTP upgrade handshake. It holds no shared state; every
// function operates on caller-owned buffers.
package wire

import "errors"

// Opcode identifies the type of a WebSocket frame.
type Opcode byte

// Frame opcodes defined by RFC 6455.
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// MaxFramePayload bounds the payload of a single frame. Frames declaring a
// larger payload are rejected before any allocation happens.
const MaxFramePayload = 64 * 1024

var (
	// ErrIncompleteFrame signals that the buffer does not yet contain the
	// whole frame, header included. Callers should read more bytes and retry.
	ErrIncompleteFrame = errors.New("wire: incomplete frame")

	// ErrFrameTooLarge signals a declared payload length above MaxFramePayload.
	ErrFrameTooLarge = errors.New("wire: frame payload exceeds maximum size")
)

// Frame is one decoded unit of the WebSocket protocol.
type Frame struct {
	Final   bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// IsControl reports whether the frame carries a control opcode.
func (f *Frame) IsControl() bool {
	return f.Opcode >= OpClose
}
