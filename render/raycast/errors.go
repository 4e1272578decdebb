package raycast

import "errors"

const prefix = "raycast: "

// ErrInvalidArgument is returned by SetSampling when asked for zero
// samples (§7).
var ErrInvalidArgument = errors.New(prefix + "invalid argument")
