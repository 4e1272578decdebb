package archive

import "errors"

const prefix = "archive: "

// ErrNoSerializer is returned (and, from deserialize, logged and
// tolerated as a partial-graph result) when no codec is registered for
// a node's class name in either the override or default registry
// (§4.F "Codec registry").
var ErrNoSerializer = errors.New(prefix + "no serializer registered for class")

// ErrUnknownFormat is returned for a container format name outside
// {filesystem, zip}.
var ErrUnknownFormat = errors.New(prefix + "unknown container format")
