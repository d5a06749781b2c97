package goldenbell

import "errors"

var (
	// Join failures, surfaced distinctly.
	ErrRoomNotFound = errors.New("room does not exist")
	ErrRoomEnded    = errors.New("room already ended")
	ErrConnectivity = errors.New("cannot reach the game store, check your connection")

	// Validation failures, caught before any store call.
	ErrInvalidRoomCode = errors.New("room code must be exactly 6 digits")
	ErrEmptyNickname   = errors.New("nickname must not be empty")
	ErrNicknameTooLong = errors.New("nickname too long")
	ErrEmptyQuestion   = errors.New("question text must not be empty")
	ErrEmptyAnswer     = errors.New("answer must not be empty")
	ErrInvalidChoice   = errors.New("selected choice is out of range")
	ErrInvalidScore    = errors.New("score delta must be a positive integer")

	ErrAlreadySubmitted = errors.New("answer already submitted, reopen to edit")
	ErrGameEnded        = errors.New("game has ended")
	ErrSessionClosed    = errors.New("session closed")
)
