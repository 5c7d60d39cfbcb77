package pipeline

import "fmt"

// Stage failure kinds. Each wraps the underlying collaborator error;
// the pipeline converts them into a failed Result at the stage
// boundary instead of letting them escape.

type FetchError struct{ Err error }

func (e *FetchError) Error() string { return fmt.Sprintf("fetch message: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

type RenderError struct{ Err error }

func (e *RenderError) Error() string { return fmt.Sprintf("render message: %v", e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

type RecognitionError struct{ Err error }

func (e *RecognitionError) Error() string { return fmt.Sprintf("recognize tables: %v", e.Err) }
func (e *RecognitionError) Unwrap() error { return e.Err }

type EmitError struct{ Err error }

func (e *EmitError) Error() string { return fmt.Sprintf("emit spreadsheet: %v", e.Err) }
func (e *EmitError) Unwrap() error { return e.Err }
