// Package authoring produces scene nodes: styled text, vector shapes, brush
// strokes, stickers and watermarks. Tools never touch the node arena; they
// build items and hand them to the renderer.
package authoring

import "errors"

var (
	ErrUnknownShape  = errors.New("unknown shape type")
	ErrNotText       = errors.New("node is not text")
	ErrNoEdit        = errors.New("no text edit in progress")
	ErrNoStroke      = errors.New("no stroke in progress")
	ErrUnknownAnchor = errors.New("unknown anchor")
	ErrInvalidScale  = errors.New("scale must be positive")
	ErrInvalidSize   = errors.New("size must be positive")
)
