package executor

import "errors"

// ErrScriptFailed indicates an update script could not be applied.
// The database rolled back whatever the script had done.
var ErrScriptFailed = errors.New("update script failed")
