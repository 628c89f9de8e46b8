package rag

import "fmt"

// RetrievalError wraps a vector index failure so the orchestrator can
// distinguish "nothing was retrieved" from a failed generation.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// CompositionError wraps a generative-model failure after retrieval
// already succeeded.
type CompositionError struct {
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed: %v", e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }
