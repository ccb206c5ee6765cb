package worker

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// newMockWorker returns a worker whose data pipe is pre-filled with one framed response.
func newMockWorker(body []byte) (*ModelWorker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	binary.Write(dataPipeMock, binary.BigEndian, uint32(len(body)))
	dataPipeMock.Write(body)

	return &ModelWorker{
		ID:       1,
		Stdin:    stdinMock,
		DataPipe: dataPipeMock,
		// Cmd is nil because we aren't testing process management, just the protocol
	}, stdinMock
}

func TestUpscaleTile(t *testing.T) {
	upscaled := []byte{0x89, 'P', 'N', 'G', 0xCA, 0xFE}
	w, stdinMock := newMockWorker(append([]byte{statusOK}, upscaled...))

	inputTile := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got, err := w.UpscaleTile(inputTile)
	if err != nil {
		t.Fatalf("UpscaleTile failed: %v", err)
	}

	// Verify Go sent the correct frame TO the model
	sent := stdinMock.Bytes()
	if len(sent) != 4+len(inputTile) {
		t.Fatalf("Expected %d bytes sent, got %d", 4+len(inputTile), len(sent))
	}
	if n := binary.BigEndian.Uint32(sent[:4]); n != uint32(len(inputTile)) {
		t.Errorf("Expected length header %d, got %d", len(inputTile), n)
	}
	if !bytes.Equal(sent[4:], inputTile) {
		t.Errorf("Expected payload %X, got %X", inputTile, sent[4:])
	}

	// Verify Go read the correct data FROM the model
	if !bytes.Equal(got, upscaled) {
		t.Errorf("Expected %X, got %X", upscaled, got)
	}
}

func TestUpscaleTile_Error(t *testing.T) {
	// Protocol: [Status:1] [MsgLen] [Msg]
	payload := new(bytes.Buffer)
	payload.WriteByte(statusError)
	errMsg := "CUDA out of memory"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)

	w, _ := newMockWorker(payload.Bytes())

	_, err := w.UpscaleTile([]byte("tile"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "model worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "model worker error: "+errMsg, err)
	}
}

func TestUpscaleTile_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"Empty body", []byte{}},
		{"OK without image", []byte{statusOK}},
		{"Unknown status", []byte{7, 1, 2}},
		{"Truncated error message", []byte{statusError, 0, 0, 0, 9, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newMockWorker(tt.body)
			if _, err := w.UpscaleTile([]byte("tile")); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestUpscaleTile_LengthsAreBounded(t *testing.T) {
	// The error frame claims a 4 GiB message but carries one byte
	w, _ := newMockWorker([]byte{statusError, 0xFF, 0xFF, 0xFF, 0xFF, 'x'})
	_, err := w.UpscaleTile([]byte("tile"))
	if err == nil || !strings.Contains(err.Error(), "truncated message: 1 of 4294967295 bytes") {
		t.Errorf("Expected a truncated message error, got %v", err)
	}

	// The response header claims more than a frame may hold
	dataPipe := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(dataPipe, binary.BigEndian, uint32(MaxFrame+1))
	dataPipe.WriteString("short")
	w = &ModelWorker{ID: 3, Stdin: &MockCloser{Buffer: new(bytes.Buffer)}, DataPipe: dataPipe}
	if _, err := w.Communicate([]byte("x")); err == nil || !strings.Contains(err.Error(), "limit is") {
		t.Errorf("Expected an oversized frame error, got %v", err)
	}
}

func TestCommunicate_DeadProcess(t *testing.T) {
	// Nothing in the data pipe: the read must fail instead of hanging
	w := &ModelWorker{
		ID:       2,
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: &MockCloser{Buffer: new(bytes.Buffer)},
	}
	if _, err := w.Communicate([]byte("x")); err == nil {
		t.Error("Expected error when no response is available")
	}
}
