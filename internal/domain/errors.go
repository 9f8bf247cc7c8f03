package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized    = errors.New("not initialized")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrNoRecipient       = errors.New("no valid recipient specified")
	ErrUploadFailed      = errors.New("upload failed")
	ErrUnsupportedKind   = errors.New("unsupported message kind")

	// ErrMemberNotFound also matches ErrRecipientNotFound.
	ErrMemberNotFound = fmt.Errorf("member %w", ErrRecipientNotFound)
)
