package service

import "errors"

// Классы ошибок домена. HTTP-слой маппит их на статусы,
// сервисы уточняют контекст через fmt.Errorf("%w: ...").
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("not allowed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("scheduling conflict")
	ErrUnavailable  = errors.New("mentor unavailable")
)
