package tracker

import "errors"

// ErrTableCreation indicates the updates table could not be created.
var ErrTableCreation = errors.New("creating updates table")

// ErrEmptyFilename indicates an attempt to record an update without a filename.
var ErrEmptyFilename = errors.New("update filename is empty")
