package core

import "errors"

var (
	ErrInvalidSymbol    = errors.New("symbol not available on the price feed")
	ErrInvalidPrice     = errors.New("price must be a positive finite number")
	ErrInvalidAmount    = errors.New("amount must be a positive finite number")
	ErrInvalidCondition = errors.New("condition must be above or below")
	ErrTokenNotFound    = errors.New("token not found")
	ErrFeedUnavailable  = errors.New("price feed unavailable")
	ErrNoSignature      = errors.New("no signature: execution attempts exhausted")
)
