package ipstack

import "errors"

// Validator accumulates frame-validation errors so a caller can run every
// ValidateSize/ValidateExceptCRC-style check on a frame before deciding
// whether to drop it, instead of bailing out of the first check that fails.
//
// Subpackages (ethernet, arp, ipv4, udp) each define their own Frame type
// and call AddError against a shared Validator as they walk header fields;
// this unifies what used to be two near-identical validator types left over
// from the teacher's own package split.
//
// The zero value is ready to use.
type Validator struct {
	// AllowMultipleErrors, if true, keeps every error passed to AddError
	// instead of only the first. Most callers want "first error wins" so
	// Err reports the earliest inconsistency found.
	AllowMultipleErrors bool
	accum               []error
}

// Reset clears all accumulated errors, readying v for reuse.
func (v *Validator) Reset() {
	v.accum = v.accum[:0]
}

// AddError records err. Unless AllowMultipleErrors is set, only the first
// error added since the last Reset is kept.
func (v *Validator) AddError(err error) {
	if err == nil {
		return
	}
	if len(v.accum) != 0 && !v.AllowMultipleErrors {
		return
	}
	v.accum = append(v.accum, err)
}

// HasError reports whether any error has been recorded since the last Reset.
func (v *Validator) HasError() bool {
	return len(v.accum) != 0
}

// Err returns the accumulated error, or nil if none was recorded. With
// multiple accumulated errors it joins them with errors.Join.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}
