package scheduler

import "errors"

var (
	// ErrAlreadyRequested means the username already has a live request.
	ErrAlreadyRequested = errors.New("user already has an active charging request")
	// ErrOutOfSpace means the waiting area is at capacity.
	ErrOutOfSpace = errors.New("waiting area is full")
	// ErrOutOfIDs means the recyclable request id pool is exhausted.
	ErrOutOfIDs = errors.New("charging ids exhausted")
	// ErrIllegalUpdate means the request was already assigned to a pile.
	ErrIllegalUpdate = errors.New("cannot update a request already assigned to a pile")
	// ErrMappingNotExisted means the username or request id is unknown.
	ErrMappingNotExisted = errors.New("no such charging request")
	// ErrPileNotFound means brake/recover was called with an unknown pile id.
	ErrPileNotFound = errors.New("no such pile")
)
