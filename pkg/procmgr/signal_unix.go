package procmgr

import "syscall"

// stopSignal/contSignal implement suspend/resume against a spawned
// dynamic entry: SIGSTOP/SIGCONT pause and resume the process without
// killing it.
const (
	stopSignal = syscall.SIGSTOP
	contSignal = syscall.SIGCONT
)
