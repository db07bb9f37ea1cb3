package domain

import "errors"

var (
	ErrChatUserNotFound = errors.New("chat user not found")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorExists   = errors.New("operator already exists")
)
