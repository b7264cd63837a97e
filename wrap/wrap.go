// Package wrap provides backends that decorate another backend. A wrapper
// owns the lifecycle of the backend it wraps.
package wrap

import (
	"errors"

	"github.com/mwantia/treefs/data"
)

// RebaseError rewrites the path of a ResourceError from below from to the
// same position below to. Errors for other paths are returned unchanged.
func RebaseError(err error, from, to data.Path) error {
	var rerr *data.ResourceError
	if err == nil || !errors.As(err, &rerr) {
		return err
	}

	p, perr := data.Normalize(rerr.Path)
	if perr != nil {
		return err
	}
	rebased, perr := p.Rebase(from, to)
	if perr != nil {
		return err
	}

	return &data.ResourceError{
		Op:   rerr.Op,
		Path: rebased.String(),
		Kind: rerr.Kind,
		Err:  rerr.Err,
	}
}
