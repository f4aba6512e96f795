package service

import "errors"

var (
	ErrInvalidSignature = errors.New("payment signature verification failed")
	ErrItemUnavailable  = errors.New("laundry item is not available")
)
