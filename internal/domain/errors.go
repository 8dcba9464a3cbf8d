package domain

import "errors"

var (
	ErrInvalidTranscript    = errors.New("invalid transcript")
	ErrProjectExists        = errors.New("project already exists")
	ErrProjectNotFound      = errors.New("project not found")
	ErrSessionBusy          = errors.New("session is busy")
	ErrSessionNotFound      = errors.New("session not found")
	ErrTranscriptUnreadable = errors.New("transcript unreadable")
)
