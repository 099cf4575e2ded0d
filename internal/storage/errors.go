package storage

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeFileTooLarge    Code = "FILE_TOO_LARGE"
	CodeInvalidFileType Code = "INVALID_FILE_TYPE"
	CodeUploadFailed    Code = "UPLOAD_FAILED"
	CodeFileNotFound    Code = "FILE_NOT_FOUND"
	CodeInvalidPath     Code = "INVALID_PATH"
	CodeUnauthorized    Code = "UNAUTHORIZED"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap keeps an existing storage error and turns anything else into
// UPLOAD_FAILED.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return NewError(CodeUploadFailed, message, err)
}

func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidPath:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInvalidFileType:
		return http.StatusUnsupportedMediaType
	case CodeFileNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type Operation string

const (
	OpUpload   Operation = "upload"
	OpDownload Operation = "download"
	OpDelete   Operation = "delete"
	OpList     Operation = "list"
	OpReplace  Operation = "replace"
	OpSign     Operation = "sign"
)
