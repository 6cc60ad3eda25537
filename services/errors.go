package services

import (
	"errors"
	"fmt"
)

// Service layer errors. Handlers match these with errors.Is and never
// surface anything else to clients.

// ===== Quest State Machine Errors =====
var (
	ErrInvalidTransition = errors.New("invalid quest transition")
	ErrCapacityExceeded  = errors.New("maximum active quests reached")
	ErrAlreadyClaimed    = errors.New("reward already claimed")
	ErrInvalidQuest      = errors.New("invalid quest")
	ErrInvalidTask       = errors.New("invalid task")
)

// ===== Lookup Errors =====
var (
	ErrNotFound         = errors.New("not found")
	ErrQuestNotFound    = fmt.Errorf("quest %w", ErrNotFound)
	ErrProgressNotFound = fmt.Errorf("user progress %w", ErrNotFound)
	ErrTaskNotFound     = fmt.Errorf("task %w", ErrNotFound)
)

// ===== Persistence / External Errors =====
var (
	ErrPersistenceConflict        = errors.New("progress was modified concurrently")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// ===== Input Errors =====
var (
	ErrInvalidAmount    = errors.New("amount out of range")
	ErrInvalidAttribute = errors.New("unknown attribute")
	ErrNotEnoughPoints  = errors.New("not enough stat points")
	ErrInvalidSettings  = errors.New("invalid settings")
	ErrInvalidTimeframe = errors.New("unknown timeframe")
)
