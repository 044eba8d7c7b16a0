package timeline

import "errors"

// ErrInconsistentOrdering marks a snapshot that cannot be reached by forward
// moves: a duplicate id, or two surviving messages that swapped places.
var ErrInconsistentOrdering = errors.New("inconsistent ordering")
