package forge

import "emperror.dev/errors"

// ErrAuth and ErrUnreachable correspond to spec.md §7's ForgeAuth and
// ForgeUnreachable error kinds.
var (
	ErrAuth        = errors.Sentinel("forge authentication failed")
	ErrUnreachable = errors.Sentinel("forge is unreachable")
)
