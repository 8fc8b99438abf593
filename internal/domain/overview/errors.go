package overview

import (
	"errors"
	"fmt"
)

// ErrMerge is the kind of every merge failure.
var ErrMerge = errors.New("merge failed")

// MergeError reports an upstream document that could not be merged.
type MergeError struct {
	Doc string // "profile" or "mythic"
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s document: %v", e.Doc, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// Is matches ErrMerge.
func (e *MergeError) Is(target error) bool { return target == ErrMerge }
