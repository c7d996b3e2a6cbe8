// Package lyrics turns educational content into song lyrics through a
// fixed sequence of stages: optional search grounding, text cleaning,
// summarization, a summary length gate and lyric conversion.
package lyrics

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step. The values are stable and appear in logs,
// metrics and error messages.
type Stage string

const (
	StageCheckSearchNeeded Stage = "check_search_needed"
	StageSearchGrounding   Stage = "google_search_grounding"
	StageCleanText         Stage = "clean_text"
	StageSummarize         Stage = "summarize"
	StageValidateSummary   Stage = "validate_summary_length"
	StageConvertToLyrics   Stage = "convert_to_lyrics"
	StageHandleError       Stage = "handle_error"

	// StageFailed is the current stage of a failed run after handle_error.
	StageFailed Stage = "error"
	// StageDone is the current stage of a successful run.
	StageDone Stage = "done"
)

// State is threaded through every stage. Once Error is set no later stage
// runs and Lyrics keeps whatever value it had.
type State struct {
	UserInput       string
	SearchEnabled   bool
	EnrichedContent string
	CleanedText     string
	Summary         string
	SummaryValid    bool
	Lyrics          string
	ContentHash     string
	CurrentStage    Stage
	Error           string
}

// Result is the tagged outcome of a stage: Continue carries the updated
// state on, Fail carries it to handle_error.
type Result struct {
	State State
	Err   error
}

// Continue passes state to the next stage.
func Continue(state State) Result {
	return Result{State: state}
}

// Fail records err on state and ends the run.
func Fail(state State, err error) Result {
	state.Error = err.Error()
	return Result{State: state, Err: err}
}

// Failed reports whether the stage ended the run.
func (r Result) Failed() bool {
	return r.Err != nil
}

// StageError is a failure attributed to a stage.
type StageError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches ErrSummaryTooLong for length gate failures.
func (e *StageError) Is(target error) bool {
	return target == ErrSummaryTooLong && e.Stage == StageValidateSummary
}

func stageErr(stage Stage, message string, cause error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: cause}
}

// ErrSummaryTooLong marks a summary rejected by the length gate.
var ErrSummaryTooLong = errors.New("summary too long")

// next is the transition table for successful stages. check_search_needed
// routes around google_search_grounding when search is disabled.
var next = map[Stage]Stage{
	StageCheckSearchNeeded: StageSearchGrounding,
	StageSearchGrounding:   StageCleanText,
	StageCleanText:         StageSummarize,
	StageSummarize:         StageValidateSummary,
	StageValidateSummary:   StageConvertToLyrics,
	StageConvertToLyrics:   StageDone,
}

func transition(stage Stage, state State) Stage {
	if stage == StageCheckSearchNeeded && !state.SearchEnabled {
		return StageCleanText
	}
	return next[stage]
}
