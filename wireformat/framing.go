package wireformat

import (
	"encoding/binary"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

const (
	// HeaderSize is the size of a frame header: a 32-bit big-endian payload
	// length.
	HeaderSize = 4

	// DefaultMaxMessageSize is the default maximum payload size. Anything
	// larger is treated as garbage and fails the connection.
	DefaultMaxMessageSize = 5242880
)

// FrameMessage prepends the big-endian length header to a payload.
func FrameMessage(payload []byte) []byte {
	framed := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	copy(framed[HeaderSize:], payload)
	return framed
}

// Decoder reassembles framed messages from a byte stream. Input may arrive
// in arbitrary chunks: a single Write may carry a partial header, several
// complete messages, or anything in between. Decoder is not safe for
// concurrent use; feed it from a single reader goroutine.
type Decoder struct {
	maxMessageSize int
	header         [HeaderSize]byte
	headerRead     int
	payload        []byte
	payloadSize    int
	payloadRead    int
}

// NewDecoder creates a Decoder enforcing the given maximum payload size.
// A non-positive max falls back to DefaultMaxMessageSize.
func NewDecoder(maxMessageSize int) *Decoder {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Decoder{maxMessageSize: maxMessageSize}
}

// Write feeds raw bytes to the decoder and returns any payloads completed by
// them. A payload length above the maximum is a protocol error; the decoder
// must not be used after an error.
func (d *Decoder) Write(data []byte) ([][]byte, error) {
	var messages [][]byte

	for {
		if d.headerRead < HeaderSize {
			if len(data) == 0 {
				return messages, nil
			}
			n := copy(d.header[d.headerRead:], data)
			d.headerRead += n
			data = data[n:]

			if d.headerRead < HeaderSize {
				return messages, nil
			}

			d.payloadSize = int(binary.BigEndian.Uint32(d.header[:]))
			if d.payloadSize > d.maxMessageSize {
				return messages, &errors.ProtocolError{
					Reason: "received message larger than the maximum allowed message size",
					Size:   d.payloadSize,
					Limit:  d.maxMessageSize,
				}
			}
			d.payload = make([]byte, d.payloadSize)
			d.payloadRead = 0
		}

		if d.payloadRead < d.payloadSize {
			if len(data) == 0 {
				return messages, nil
			}
			n := copy(d.payload[d.payloadRead:], data)
			d.payloadRead += n
			data = data[n:]
		}

		if d.payloadRead < d.payloadSize {
			return messages, nil
		}

		messages = append(messages, d.payload)
		d.payload = nil
		d.headerRead = 0
		d.payloadSize = 0
		d.payloadRead = 0
	}
}
