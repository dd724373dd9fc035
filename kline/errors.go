package kline

import "errors"

var (
	ErrConfigMismatch = errors.New("timestep mismatch")
	ErrOutOfOrder     = errors.New("locate before current quote")
	ErrOutOfRange     = errors.New("locate out of range")
	ErrNotFound       = errors.New("kline not found")
	ErrAlreadyExists  = errors.New("kline already exists")
	ErrNotActivated   = errors.New("kline not activated")
	ErrBadRow         = errors.New("bad row")
)
