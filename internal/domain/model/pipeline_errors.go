package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures in the evaluation pipeline.
type ErrorKind string

const (
	KindEnqueue     ErrorKind = "enqueue"
	KindParse       ErrorKind = "parse"
	KindRetrieval   ErrorKind = "retrieval"
	KindGeneration  ErrorKind = "generation"
	KindPersistence ErrorKind = "persistence"
)

// Sentinels for errors.Is matching against a PipelineError kind.
var (
	ErrEnqueue     = errors.New("enqueue error")
	ErrParse       = errors.New("parse error")
	ErrRetrieval   = errors.New("retrieval error")
	ErrGeneration  = errors.New("generation error")
	ErrPersistence = errors.New("persistence error")
)

var kindSentinels = map[ErrorKind]error{
	KindEnqueue:     ErrEnqueue,
	KindParse:       ErrParse,
	KindRetrieval:   ErrRetrieval,
	KindGeneration:  ErrGeneration,
	KindPersistence: ErrPersistence,
}

// PipelineError wraps a failure with the pipeline stage that produced it.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can write errors.Is(err, ErrParse).
func (e *PipelineError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newPipelineError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// NewEnqueueError wraps a queue store failure at submission time.
func NewEnqueueError(op string, err error) error { return newPipelineError(KindEnqueue, op, err) }

// NewParseError wraps a missing or unreadable source document.
func NewParseError(op string, err error) error { return newPipelineError(KindParse, op, err) }

// NewRetrievalError wraps a rubric index or embedding failure.
func NewRetrievalError(op string, err error) error { return newPipelineError(KindRetrieval, op, err) }

// NewGenerationError wraps a generation service or schema validation failure.
func NewGenerationError(op string, err error) error { return newPipelineError(KindGeneration, op, err) }

// NewPersistenceError wraps a result store write failure.
func NewPersistenceError(op string, err error) error {
	return newPipelineError(KindPersistence, op, err)
}

// KindOf returns the pipeline kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
