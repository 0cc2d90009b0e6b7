package model

import "fmt"

// AcquisitionError reports that every source and mirror was exhausted, or a
// requested ref could not be resolved anywhere.
type AcquisitionError struct {
	Spec VersionSpec
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Spec, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// PatchError reports that a required patch failed all apply strategies.
type PatchError struct {
	MutationID string
	Err        error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("required patch %s failed: %v", e.MutationID, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// InjectionEngineError reports an engine-level fault: I/O failure or a
// malformed block template. "No anchor matched" is never an error; it is a
// skipped MutationResult.
type InjectionEngineError struct {
	MutationID string
	Err        error
}

func (e *InjectionEngineError) Error() string {
	return fmt.Sprintf("injection %s: %v", e.MutationID, e.Err)
}

func (e *InjectionEngineError) Unwrap() error { return e.Err }

// BuildToolError surfaces an external build failure verbatim, with a bounded
// tail of the build log for diagnosis.
type BuildToolError struct {
	ExitCode int
	LogTail  string
	Err      error
}

func (e *BuildToolError) Error() string {
	return fmt.Sprintf("build tool exited %d: %v", e.ExitCode, e.Err)
}

func (e *BuildToolError) Unwrap() error { return e.Err }

// PackagingError reports that the expected build output is missing or the
// archive could not be assembled.
type PackagingError struct {
	Path Path
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package %s: %v", e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }
