//go:build windows

package merge

import "syscall"

var errNotDir error = syscall.ERROR_PATH_NOT_FOUND
