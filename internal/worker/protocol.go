package worker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andresmejia3/oculus/internal/types"
)

const (
	statusOK    byte = 0
	statusError byte = 1

	maxMessageSize = 16 * 1024 * 1024
	maxEyePoints   = 1024
)

// decodeDetection parses a worker reply.
//
//	OK:    [Status:0] [Found:u8] ( [LeftCount:u32] [x,y float32]... [RightCount:u32] [x,y float32]... )
//	Error: [Status:1] [MsgLen:u32] [Msg]
func decodeDetection(payload []byte) (types.DetectionResult, error) {
	if len(payload) == 0 {
		return types.NoDetection(), fmt.Errorf("empty response")
	}
	if payload[0] == statusError {
		return types.NoDetection(), decodeError(payload[1:])
	}
	if payload[0] != statusOK {
		return types.NoDetection(), fmt.Errorf("unknown response status %d", payload[0])
	}

	r := bytes.NewReader(payload[1:])
	found, err := r.ReadByte()
	if err != nil {
		return types.NoDetection(), fmt.Errorf("reading detection flag: %w", err)
	}
	if found == 0 {
		return types.NoDetection(), nil
	}

	left, err := readEye(r)
	if err != nil {
		return types.NoDetection(), fmt.Errorf("reading left eye: %w", err)
	}
	right, err := readEye(r)
	if err != nil {
		return types.NoDetection(), fmt.Errorf("reading right eye: %w", err)
	}
	return types.Detected(left, right), nil
}

func readEye(r io.Reader) (types.EyePointSet, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 || n > maxEyePoints {
		return nil, fmt.Errorf("invalid landmark count %d", n)
	}
	raw := make([]float32, 2*n)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, err
	}
	eye := make(types.EyePointSet, n)
	for i := range eye {
		eye[i] = types.Point{X: float64(raw[2*i]), Y: float64(raw[2*i+1])}
	}
	return eye, nil
}

func decodeError(body []byte) error {
	r := bytes.NewReader(body)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return fmt.Errorf("%w: unreadable error message", ErrWorker)
	}
	if int(n) > r.Len() {
		return fmt.Errorf("%w: truncated error message", ErrWorker)
	}
	msg := make([]byte, n)
	r.Read(msg)
	return fmt.Errorf("%w: %s", ErrWorker, msg)
}
