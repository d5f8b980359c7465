package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu        sync.Mutex
	partials  []string
	completes []string
	errs      []error
	order     []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPartial: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.partials = append(r.partials, text)
			r.order = append(r.order, "partial")
		},
		OnComplete: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, text)
			r.order = append(r.order, "complete")
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			r.order = append(r.order, "error")
		},
	}
}

func TestDrain_CumulativePartialsThenComplete(t *testing.T) {
	h := newChunkHandle("Hi", " there", "!")
	s := NewSession(h)
	rec := &recorder{}

	NewConsumer(0, nil).Drain(context.Background(), s, rec.callbacks())

	want := []string{"Hi", "Hi there", "Hi there!"}
	if len(rec.partials) != len(want) {
		t.Fatalf("expected %d partials, got %v", len(want), rec.partials)
	}
	for i := range want {
		if rec.partials[i] != want[i] {
			t.Fatalf("partial %d: expected %q, got %q", i, want[i], rec.partials[i])
		}
	}
	if len(rec.completes) != 1 || rec.completes[0] != "Hi there!" {
		t.Fatalf("expected single complete with final text, got %v", rec.completes)
	}
	if len(rec.errs) != 0 {
		t.Fatalf("expected no errors, got %v", rec.errs)
	}
	if rec.order[len(rec.order)-1] != "complete" {
		t.Fatalf("expected complete to be last, got %v", rec.order)
	}
	if h.closes.Load() != 1 || s.Releases() != 1 {
		t.Fatalf("expected handle released once, got closes=%d releases=%d", h.closes.Load(), s.Releases())
	}
}

func TestDrain_PartialsArePrefixMonotonic(t *testing.T) {
	cases := [][]string{
		{"a"},
		{"", "a", "", "bc"},
		{"héllo ", "wörld", " ✓"},
		{strings.Repeat("x", 10000), "y"},
	}
	for i, chunks := range cases {
		rec := &recorder{}
		NewConsumer(7, nil).Drain(context.Background(), NewSession(newChunkHandle(chunks...)), rec.callbacks())

		prev := ""
		for _, p := range rec.partials {
			if !strings.HasPrefix(p, prev) || p == prev {
				t.Fatalf("case %d: partial %q is not a strict extension of %q", i, p, prev)
			}
			prev = p
		}
		if len(rec.completes) != 1 {
			t.Fatalf("case %d: expected one complete, got %v", i, rec.completes)
		}
		if rec.completes[0] != prev {
			t.Fatalf("case %d: expected complete %q to equal last partial %q", i, rec.completes[0], prev)
		}
		if rec.completes[0] != strings.Join(chunks, "") {
			t.Fatalf("case %d: expected %q, got %q", i, strings.Join(chunks, ""), rec.completes[0])
		}
	}
}

func TestDrain_MultiByteSplitAcrossChunks(t *testing.T) {
	euro := []byte("€") // 0xE2 0x82 0xAC
	h := newByteHandle(
		[]byte("price: "),
		euro[:1],
		euro[1:2],
		append(euro[2:], []byte("5")...),
	)
	rec := &recorder{}
	NewConsumer(0, nil).Drain(context.Background(), NewSession(h), rec.callbacks())

	for _, p := range rec.partials {
		if strings.ContainsRune(p, '�') {
			t.Fatalf("expected no replacement characters in partial, got %q", p)
		}
	}
	want := []string{"price: ", "price: €5"}
	if len(rec.partials) != len(want) {
		t.Fatalf("expected partials %v, got %v", want, rec.partials)
	}
	for i := range want {
		if rec.partials[i] != want[i] {
			t.Fatalf("partial %d: expected %q, got %q", i, want[i], rec.partials[i])
		}
	}
	if rec.completes[0] != "price: €5" {
		t.Fatalf("expected final %q, got %q", "price: €5", rec.completes[0])
	}
}

func TestDrain_DanglingSequenceAtEOFBecomesReplacement(t *testing.T) {
	emoji := []byte("😀")
	rec := &recorder{}
	NewConsumer(0, nil).Drain(context.Background(), NewSession(newByteHandle([]byte("ok"), emoji[:2])), rec.callbacks())

	if len(rec.completes) != 1 {
		t.Fatalf("expected one completion, got %v", rec.completes)
	}
	final := rec.completes[0]
	if !strings.HasPrefix(final, "ok") || !strings.HasSuffix(final, "\uFFFD") {
		t.Fatalf("expected trailing replacement char, got %q", final)
	}
}

func TestDrain_ReadErrorFiresOnceAndStops(t *testing.T) {
	h := newChunkHandle("Parti")
	h.failErr = errors.New("connection reset")
	rec := &recorder{}

	NewConsumer(0, nil).Drain(context.Background(), NewSession(h), rec.callbacks())

	if len(rec.partials) != 1 || rec.partials[0] != "Parti" {
		t.Fatalf("expected one partial, got %v", rec.partials)
	}
	if len(rec.errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", rec.errs)
	}
	if len(rec.completes) != 0 {
		t.Fatalf("expected no complete after error, got %v", rec.completes)
	}
	if h.reads != 2 {
		t.Fatalf("expected no reads after failure, got %d reads", h.reads)
	}
	if h.closes.Load() != 1 {
		t.Fatalf("expected handle closed once, got %d", h.closes.Load())
	}
}

func TestDrain_EmptyStreamCompletesWithEmptyText(t *testing.T) {
	rec := &recorder{}
	NewConsumer(0, nil).Drain(context.Background(), NewSession(newChunkHandle()), rec.callbacks())
	if len(rec.partials) != 0 {
		t.Fatalf("expected no partials, got %v", rec.partials)
	}
	if len(rec.completes) != 1 || rec.completes[0] != "" {
		t.Fatalf("expected empty completion, got %v", rec.completes)
	}
}

func TestDrain_HandleDrainedTwice(t *testing.T) {
	s := NewSession(newChunkHandle("x"))
	c := NewConsumer(0, nil)
	c.Drain(context.Background(), s, Callbacks{})

	rec := &recorder{}
	c.Drain(context.Background(), s, rec.callbacks())
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], ErrAlreadyDrained) {
		t.Fatalf("expected ErrAlreadyDrained, got %v", rec.errs)
	}
	if len(rec.partials) != 0 || len(rec.completes) != 0 {
		t.Fatalf("expected no other callbacks, got partials=%v completes=%v", rec.partials, rec.completes)
	}
}

func TestDrain_CancelReleasesHandleOnceAndSilencesCallbacks(t *testing.T) {
	h := newBlockingHandle()
	s := NewSession(h)
	rec := &recorder{}
	done := make(chan struct{})

	go func() {
		NewConsumer(0, nil).Drain(context.Background(), s, rec.callbacks())
		close(done)
	}()

	h.feed <- []byte("first")
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.partials) == 1
	})

	s.Cancel()
	s.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected drain to return after cancel")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 0 || len(rec.completes) != 0 {
		t.Fatalf("expected no terminal callbacks after cancel, got errs=%v completes=%v", rec.errs, rec.completes)
	}
	if h.closes.Load() != 1 {
		t.Fatalf("expected exactly one close, got %d", h.closes.Load())
	}
}

func TestDrain_ContextCancellationClosesHandle(t *testing.T) {
	h := newBlockingHandle()
	s := NewSession(h)
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan struct{})

	go func() {
		NewConsumer(0, nil).Drain(ctx, s, rec.callbacks())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected drain to return after context cancel")
	}
	if !s.Cancelled() {
		t.Fatalf("expected session marked cancelled")
	}
	if len(rec.errs) != 0 || len(rec.completes) != 0 {
		t.Fatalf("expected silence after cancellation, got errs=%v completes=%v", rec.errs, rec.completes)
	}
	if h.closes.Load() != 1 {
		t.Fatalf("expected one close, got %d", h.closes.Load())
	}
}

func TestSnapshots_StopEarlyReleasesHandle(t *testing.T) {
	h := newChunkHandle("a", "b", "c")
	s := NewSession(h)
	for text := range NewConsumer(0, nil).Snapshots(context.Background(), s) {
		if text == "ab" {
			break
		}
	}
	if h.closes.Load() != 1 {
		t.Fatalf("expected handle released after early stop, got %d closes", h.closes.Load())
	}
	if s.Completed() {
		t.Fatalf("expected session not completed")
	}
}

func TestCollect(t *testing.T) {
	out, err := NewConsumer(3, nil).Collect(context.Background(), NewSession(newChunkHandle("hola ", "mundo")))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "hola mundo" {
		t.Fatalf("expected %q, got %q", "hola mundo", out)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
