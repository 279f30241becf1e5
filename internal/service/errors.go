package service

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized indicates the caller identity is missing.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSubmissionNotFound indicates the submission does not exist for the caller.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrRubricNotFound indicates the rubric does not exist for the caller.
	ErrRubricNotFound = errors.New("rubric not found")
	// ErrInvalidRubric indicates the criteria cannot be scored against.
	ErrInvalidRubric = errors.New("invalid rubric")
	// ErrStorageFailure indicates the object store could not be read or written.
	ErrStorageFailure = errors.New("storage failure")
	// ErrPersistenceFailure indicates the record store could not be read or written.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrSubmissionClosed indicates the submission already failed and will not be evaluated again.
	ErrSubmissionClosed = errors.New("submission evaluation already failed")
	// ErrEvaluationInProgress indicates another instance holds the evaluation lock.
	ErrEvaluationInProgress = errors.New("evaluation already in progress")
	// ErrUnsupportedDocument indicates no text could be extracted from the upload.
	ErrUnsupportedDocument = errors.New("unsupported document")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrDispatchFailure indicates the evaluation job could not be handed to a worker.
	ErrDispatchFailure = errors.New("evaluation could not be scheduled")
	// ErrUploadMissing indicates the multipart request carried no file.
	ErrUploadMissing = errors.New("file is required")
)

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthorized
	}
	return nil
}
