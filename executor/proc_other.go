//go:build !unix

package executor

import "os/exec"

// killGroupOnCancel relies on the default Cancel, which kills only the
// direct child; WaitDelay still bounds the wait for its output pipes.
func killGroupOnCancel(*exec.Cmd) {}
