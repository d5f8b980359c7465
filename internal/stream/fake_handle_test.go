package stream

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// chunkHandle entrega los chunks configurados uno por Read y luego EOF o failErr.
type chunkHandle struct {
	mu      sync.Mutex
	chunks  [][]byte
	failErr error
	reads   int
	closes  atomic.Int32
}

func newChunkHandle(chunks ...string) *chunkHandle {
	h := &chunkHandle{}
	for _, c := range chunks {
		h.chunks = append(h.chunks, []byte(c))
	}
	return h
}

func newByteHandle(chunks ...[]byte) *chunkHandle {
	return &chunkHandle{chunks: chunks}
}

func (h *chunkHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if len(h.chunks) == 0 {
		if h.failErr != nil {
			return 0, h.failErr
		}
		return 0, io.EOF
	}
	n := copy(p, h.chunks[0])
	if n < len(h.chunks[0]) {
		h.chunks[0] = h.chunks[0][n:]
	} else {
		h.chunks = h.chunks[1:]
	}
	return n, nil
}

func (h *chunkHandle) Close() error {
	h.closes.Add(1)
	return nil
}

// blockingHandle entrega chunks a pedido y bloquea Read hasta recibir uno o hasta Close.
type blockingHandle struct {
	feed   chan []byte
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
}

var errHandleClosed = errors.New("handle closed")

func newBlockingHandle() *blockingHandle {
	return &blockingHandle{
		feed:   make(chan []byte),
		closed: make(chan struct{}),
	}
}

func (h *blockingHandle) Read(p []byte) (int, error) {
	select {
	case chunk, ok := <-h.feed:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	case <-h.closed:
		return 0, errHandleClosed
	}
}

func (h *blockingHandle) Close() error {
	h.closes.Add(1)
	h.once.Do(func() { close(h.closed) })
	return nil
}
