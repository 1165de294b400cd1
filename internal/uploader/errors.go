package uploader

import "errors"

var (
	// ErrUnknownUploader indicates an unregistered selector.
	ErrUnknownUploader = errors.New("uploader: unknown uploader")

	// ErrNoUploadFunction indicates a script that defines no upload function.
	ErrNoUploadFunction = errors.New("uploader: script defines no upload function")
)
