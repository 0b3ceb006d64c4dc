package coverage

// SoftKill implements the sending side of spec.md section 4.2's process
// termination protocol: encode NUDGE_TERMINATE_PROCESS | (exitCode << 32)
// and deliver it to pid via the host.
func (e *Engine) SoftKill(pid, exitCode int) error {
	const nudgeTerminateProcess = 1
	payload := uint64(nudgeTerminateProcess) | uint64(uint32(exitCode))<<32
	return e.host.Nudge(pid, payload)
}

// ReceiveNudge implements the receiving side: under a compare-and-swap-
// like counter, only the first arrival calls exitProcess; later arrivals
// (from NtTerminateProcess and NtTerminateJobObject both firing) no-op.
// exitFn is injected so tests can observe the call instead of the
// process actually exiting.
func (e *Engine) ReceiveNudge(payload uint64, exitFn func(code int)) {
	if e.nudgeCounter.Add(1) != 1 {
		return
	}
	exitCode := int(int32(payload >> 32))
	exitFn(exitCode)
}
