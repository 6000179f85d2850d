package network

import "errors"

// ErrDuplicate is returned when an inbound block or transaction is already
// known locally (spec.md §7 Duplicate: silent drop).
var ErrDuplicate = errors.New("network: already known")

// ErrOrphaned is returned (informationally, not as a failure) when an
// inbound block's parent is not yet known; the block has been buffered
// and its parent requested (spec.md §7 BlockOrphaned).
var ErrOrphaned = errors.New("network: block buffered pending parent")
