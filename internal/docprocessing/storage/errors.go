package storage

import "errors"

// ErrTooLarge is returned by Workspace.Save when the upload exceeds the limit.
var ErrTooLarge = errors.New("upload too large")
