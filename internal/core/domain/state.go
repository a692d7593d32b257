package domain

// EngineState is the lifecycle state of a single engine compilation.
type EngineState string

const (
	// EngineStateIdle indicates no compilation has started.
	EngineStateIdle EngineState = "idle"
	// EngineStateCompiling indicates the host compiler is running.
	EngineStateCompiling EngineState = "compiling"
	// EngineStateSucceeded indicates the last compilation produced a module.
	EngineStateSucceeded EngineState = "succeeded"
	// EngineStateFailed indicates the last compilation reported errors.
	EngineStateFailed EngineState = "failed"
)

// IsTerminal reports whether the state ends a compilation.
func (s EngineState) IsTerminal() bool {
	switch s {
	case EngineStateSucceeded, EngineStateFailed:
		return true
	default:
		return false
	}
}
