// Package framing implements the wire-level message framing shared by
// every JSON-RPC connection (spec.md §4.6): a 4-byte big-endian length
// prefix followed by that many payload bytes, capped at MaxMessageSize and
// rejecting a zero-length prefix outright.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/saimizi/iviplugind/internal/bufpool"
)

// MaxMessageSize is the largest payload this framing will accept, chosen
// as a denial-of-service ceiling (spec.md §4.6).
const MaxMessageSize uint32 = 64 * 1024 * 1024

// HeaderSize is the width of the length prefix in bytes.
const HeaderSize = 4

// ErrZeroLength is returned when a frame's length prefix decodes to 0.
var ErrZeroLength = errors.New("framing: message length is zero")

// ErrTooLarge is returned when a frame's length prefix exceeds
// MaxMessageSize.
var ErrTooLarge = errors.New("framing: message exceeds maximum size")

// ReadOutcome is the result of one ReadFrame call.
type ReadOutcome int

const (
	// NeedMore means no complete frame is available yet; the caller
	// should retry after more data arrives (e.g. on the next poll tick).
	NeedMore ReadOutcome = iota
	// Complete means Payload holds a fully-received message.
	Complete
	// Eof means the underlying connection reached end of stream.
	Eof
)

// readState names which part of a frame the Reader is waiting on.
type readState int

const (
	waitingForHeader readState = iota
	waitingForPayload
)

// Reader is a resumable length-prefixed frame decoder. It retains partial
// reads across calls, so a caller can feed it bytes from a non-blocking
// socket one short read at a time (spec.md §4.6's `WaitingForHeader` /
// `WaitingForPayload` state machine).
type Reader struct {
	maxSize     uint32
	state       readState
	header      [HeaderSize]byte
	headerRead  int
	expectedLen uint32
	payload     []byte
	payloadRead int
}

// NewReader returns a Reader waiting for the next frame's header, rejecting
// any frame larger than MaxMessageSize.
func NewReader() *Reader {
	return NewReaderSize(MaxMessageSize)
}

// NewReaderSize is NewReader with a caller-chosen frame size ceiling,
// letting a deployment tighten or loosen MaxMessageSize via config
// (SPEC_FULL.md's configurable max_frame_size). A zero maxSize falls back
// to MaxMessageSize.
func NewReaderSize(maxSize uint32) *Reader {
	if maxSize == 0 {
		maxSize = MaxMessageSize
	}
	return &Reader{state: waitingForHeader, maxSize: maxSize}
}

// ReadFrame attempts to read one complete frame from r. On a non-blocking
// net.Conn, a timeout error (from a short SetReadDeadline) is reported as
// NeedMore rather than propagated; any other error is returned as-is and
// is fatal to this connection (spec.md §7: "framing errors are fatal to
// that connection only"). The returned payload on Complete came from
// bufpool and should be returned via bufpool.Put once the caller is done
// with it.
func (fr *Reader) ReadFrame(r io.Reader) (ReadOutcome, []byte, error) {
	for {
		switch fr.state {
		case waitingForHeader:
			n, err := r.Read(fr.header[fr.headerRead:])
			if n > 0 {
				fr.headerRead += n
			}
			if err != nil {
				return classifyReadErr(err)
			}
			if n == 0 {
				return Eof, nil, nil
			}
			if fr.headerRead < HeaderSize {
				continue
			}

			length := binary.BigEndian.Uint32(fr.header[:])
			if length == 0 {
				fr.reset()
				return NeedMore, nil, ErrZeroLength
			}
			if length > fr.maxSize {
				fr.reset()
				return NeedMore, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, length, fr.maxSize)
			}

			fr.expectedLen = length
			fr.payload = bufpool.GetUint32(length)
			fr.payloadRead = 0
			fr.state = waitingForPayload

		case waitingForPayload:
			n, err := r.Read(fr.payload[fr.payloadRead:fr.expectedLen])
			if n > 0 {
				fr.payloadRead += n
			}
			if err != nil {
				return classifyReadErr(err)
			}
			if n == 0 {
				return Eof, nil, nil
			}
			if fr.payloadRead < int(fr.expectedLen) {
				continue
			}

			payload := fr.payload
			fr.reset()
			return Complete, payload, nil
		}
	}
}

func (fr *Reader) reset() {
	fr.state = waitingForHeader
	fr.headerRead = 0
	fr.expectedLen = 0
	fr.payload = nil
	fr.payloadRead = 0
}

func classifyReadErr(err error) (ReadOutcome, []byte, error) {
	if err == io.EOF {
		return Eof, nil, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NeedMore, nil, nil
	}
	return NeedMore, nil, err
}

// WriteFrame writes data as a single length-prefixed frame, rejecting
// payloads larger than MaxMessageSize. A zero-length payload is rejected
// only on the read side (spec.md §4.6), so it is written as-is here.
func WriteFrame(w io.Writer, data []byte) error {
	return WriteFrameSize(w, data, MaxMessageSize)
}

// WriteFrameSize is WriteFrame with a caller-chosen size ceiling, mirroring
// NewReaderSize. A zero maxSize falls back to MaxMessageSize.
func WriteFrameSize(w io.Writer, data []byte, maxSize uint32) error {
	if maxSize == 0 {
		maxSize = MaxMessageSize
	}
	if uint32(len(data)) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), maxSize)
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
