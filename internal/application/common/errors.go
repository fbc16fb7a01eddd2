package common

import "errors"

// Operation names the service call an error came out of.
type Operation string

const (
	OpResolveEntity      Operation = "resolve entity"
	OpResolveBatch       Operation = "resolve entity batch"
	OpProposeTask        Operation = "propose sync task"
	OpEndTask            Operation = "end sync task"
	OpGetTask            Operation = "retrieve sync task"
	OpFindSimilarContent Operation = "find similar content"
	OpClearLookupCache   Operation = "clear lookup cache"
	OpGenerateEmbeddings Operation = "generate embeddings"
	OpSyncEmbeddings     Operation = "sync embeddings"
)

// ServiceError tags a failure with the operation that produced it.
type ServiceError struct {
	Op  Operation
	Err error
}

func (e *ServiceError) Error() string {
	return "failed to " + string(e.Op) + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WrapServiceError tags err with op. A nil err stays nil.
func WrapServiceError(op Operation, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Op: op, Err: err}
}

// OperationOf returns the outermost operation err was tagged with.
func OperationOf(err error) (Operation, bool) {
	var serr *ServiceError
	if !errors.As(err, &serr) {
		return "", false
	}
	return serr.Op, true
}

// Cause strips the operation tag, returning err unchanged when it has none.
func Cause(err error) error {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr.Err
	}
	return err
}
