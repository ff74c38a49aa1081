package session

// TreeTerminator kills a spawned process and every process it transitively
// forked. Build and upload tools routinely fork workers, so terminating
// only the immediate child leaves orphans grinding on.
//
// The implementation is platform specific and injectable so cancellation
// logic can be tested without spawning real processes.
type TreeTerminator interface {
	// TerminateTree terminates the process tree rooted at pid. It returns
	// once the termination request has been issued; callers wait for exit
	// confirmation separately.
	TerminateTree(pid int) error
}
