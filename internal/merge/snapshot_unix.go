//go:build !windows

package merge

import "syscall"

var errNotDir error = syscall.ENOTDIR
