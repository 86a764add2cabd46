// Package nodes implements the concrete node kinds the engine's example
// pipelines are built from: constants, elementwise affine transforms,
// normalization (the canonical refinable kind), dense linear layers and 2-D
// convolutions. Each kind implements the model.Node capability set; the
// transformer and the passes never depend on anything beyond that.
package nodes
