package model

import "errors"

// Structural errors are detected while a model is being built and are fatal
// to that construction call.
var (
	// ErrSizeMismatch reports a PortElements value whose total length does
	// not match the declared size of the input port it feeds.
	ErrSizeMismatch = errors.New("port size mismatch")

	// ErrTypeMismatch reports a PortElements value whose element type does
	// not match the port it is connected to.
	ErrTypeMismatch = errors.New("port type mismatch")

	// ErrForwardReference reports an attempt to add a node whose inputs
	// reference a port on a node not yet present in the model.
	ErrForwardReference = errors.New("forward reference")

	// ErrCycle reports a dependency cycle found during validation.
	ErrCycle = errors.New("cycle detected")
)

// ErrProtocol reports a transformer-protocol violation: a missing or
// duplicate output mapping, or a node-implementor call outside an active
// transformation. These indicate a bug in a Node or pass implementation,
// not a problem with user data, and are never retried.
var ErrProtocol = errors.New("transformer protocol violation")
