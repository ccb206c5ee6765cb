package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andresmejia3/imagedrop/internal/utils" // Using the SafeCommand wrapper
)

const (
	statusOK    byte = 0
	statusError byte = 1
)

// MaxFrame caps a response frame. A 4x tile of 512px encodes well below it.
const MaxFrame = 64 << 20

// Config describes how to launch the super-resolution model process.
type Config struct {
	Command string
	Args    []string
	Model   string
	Scale   int
}

// ModelWorker is a long-lived model process fed one tile at a time.
type ModelWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

// NewModelWorker starts the model process. Results come back on a side-channel
// pipe (FD 3) so the model's own stdout chatter never corrupts the protocol.
func NewModelWorker(ctx context.Context, id int, cfg Config) (*ModelWorker, error) {
	args := append([]string{}, cfg.Args...)
	args = append(args, "--model", cfg.Model, "--scale", strconv.Itoa(cfg.Scale))
	py := utils.NewSafeCommand(ctx, cfg.Command, args...)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &ModelWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one length-prefixed request and reads one length-prefixed response.
func (w *ModelWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // The model process died before answering
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > MaxFrame {
		return nil, fmt.Errorf("model worker %d sent a %d byte frame, limit is %d", w.ID, respLen, MaxFrame)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// UpscaleTile sends an encoded tile and returns the encoded upscaled tile.
//
// Response body: [Status:1] followed by either the image bytes (status 0)
// or [MsgLen:4][Msg] (status 1).
func (w *ModelWorker) UpscaleTile(tile []byte) ([]byte, error) {
	resp, err := w.Communicate(tile)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("model worker %d sent an empty response", w.ID)
	}

	switch resp[0] {
	case statusOK:
		if len(resp) == 1 {
			return nil, fmt.Errorf("model worker %d returned no image", w.ID)
		}
		return resp[1:], nil
	case statusError:
		r := bytes.NewReader(resp[1:])
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("model worker error with unreadable message: %w", err)
		}
		if int64(msgLen) > int64(r.Len()) {
			return nil, fmt.Errorf("model worker error with truncated message: %d of %d bytes", r.Len(), msgLen)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("model worker error with truncated message: %w", err)
		}
		return nil, fmt.Errorf("model worker error: %s", msg)
	default:
		return nil, fmt.Errorf("model worker %d sent unknown status %d", w.ID, resp[0])
	}
}

// Close shuts the process down and waits for it to exit.
func (w *ModelWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
