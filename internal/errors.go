package internal

import "errors"

var ErrSlugExists = errors.New("slug already exists")
var ErrLinkNotFound = errors.New("link not found")

var (
	ErrInvalidURL         = errors.New("url is required")
	ErrInvalidSlug        = errors.New("slug must be at most 64 characters of letters, numbers, hyphens and underscores")
	ErrSlugTaken          = errors.New("slug is already taken")
	ErrSlugSpaceExhausted = errors.New("could not generate a free slug")
)

// ErrStore marks failures of the underlying storage. It is always wrapped
// together with the driver error.
var ErrStore = errors.New("store failure")
