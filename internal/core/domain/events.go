package domain

// CompilationEvent describes one compilation performed by the factory.
type CompilationEvent struct {
	// Engine is the name of the engine that compiled the batch.
	Engine string
	// URLs are the scripts compiled together.
	URLs []string
	// Recompilation is set when a changed script was compiled on its own.
	Recompilation bool
}
