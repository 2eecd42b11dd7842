package service

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrProcessingNotComplete = errors.New("processing not complete")
	ErrInvalidFormat         = errors.New("invalid video format")
	ErrVideoTooLarge         = errors.New("video too large")
	ErrAlreadyProcessing     = errors.New("video is already being processed")
	ErrUnavailable           = errors.New("service unavailable")
	ErrIndexTimeout          = errors.New("indexing did not finish before the deadline")
	ErrInvalidToken          = errors.New("invalid or expired token")
)
