package dialog

import "sync"

// ResultKind tags the outcome of an entry session.
type ResultKind int

const (
	// ResultConfirmed means the user pressed Enter; Secret holds the entry.
	ResultConfirmed ResultKind = iota
	// ResultCancelled means the user or the compositor dismissed the dialog.
	ResultCancelled
	// ResultError means the window context failed before an outcome.
	ResultError
)

// Result is the final outcome of a dialog session.
type Result struct {
	Kind   ResultKind
	Secret []byte
	Err    error
}

// Confirmed builds a confirmed result carrying a copy of the secret.
func Confirmed(secret []byte) Result {
	return Result{Kind: ResultConfirmed, Secret: secret}
}

// Cancelled builds a cancelled result.
func Cancelled() Result {
	return Result{Kind: ResultCancelled}
}

// Errored builds an error result.
func Errored(err error) Result {
	return Result{Kind: ResultError, Err: err}
}

// ResultSlot is a single-assignment, cross-thread slot for the session
// outcome. The window context writes it exactly once; the protocol caller
// blocks on Wait or polls TryGet. A write that lands before the caller
// starts waiting is retained, and second write attempts are rejected, so
// self-termination and caller-initiated teardown cannot race.
type ResultSlot struct {
	mu   sync.Mutex
	set  bool
	res  Result
	done chan struct{}
}

// NewResultSlot creates an empty slot.
func NewResultSlot() *ResultSlot {
	return &ResultSlot{done: make(chan struct{})}
}

// Put assigns the result. Only the first call succeeds; later calls
// return false and leave the slot unchanged.
func (s *ResultSlot) Put(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.set = true
	s.res = res
	close(s.done)
	return true
}

// Wait blocks until the result is assigned and returns it.
func (s *ResultSlot) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

// TryGet returns the result if one has been assigned.
func (s *ResultSlot) TryGet() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res, s.set
}

// Done is closed once the result is assigned.
func (s *ResultSlot) Done() <-chan struct{} {
	return s.done
}
