package models

import "errors"

var (
	ErrMalformedStep     = errors.New("malformed step")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
