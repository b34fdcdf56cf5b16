package app

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrResumeNotFound      = errors.New("resume not found")
	ErrResumeNotIndexed    = errors.New("resume has not been indexed yet")
	ErrJobNotFound         = errors.New("job position not found")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
