package services

import "errors"

// Task errors
var (
	ErrTaskNotFound     = errors.New("task: not found")
	ErrTaskInvalidInput = errors.New("task: input file does not exist")
	ErrDocumentEmpty    = errors.New("task: document produced no pages")
)

// Scheduler errors
var (
	ErrQueueFull = errors.New("scheduler: task queue is full")
)
