package models

import "errors"

var (
	// ErrTransientIO: сеть/файл, повторяется политикой ретраев, потом тик пропускается.
	ErrTransientIO = errors.New("transient io error")
	// ErrDataInsufficient: мало свечей, сигнал считается HOLD.
	ErrDataInsufficient = errors.New("insufficient data")
	// ErrInvalidState: битое или противоречивое состояние.
	ErrInvalidState = errors.New("invalid state")
	// ErrOrderRejected: шлюз не подтвердил ордер.
	ErrOrderRejected = errors.New("order rejected")
)
