// Package process manages the process groups of converter subprocesses so
// that a timeout or shutdown kills the whole tree, not only the direct
// child.
package process
