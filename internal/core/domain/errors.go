package domain

import "go.trai.ch/zerr"

var (
	// ErrCompilationFailed is returned when the host compiler reports one or more errors.
	ErrCompilationFailed = zerr.New("compilation failed")

	// ErrEngineAlreadyRegistered is returned when a second engine is registered for the same base type.
	ErrEngineAlreadyRegistered = zerr.New("an engine is already registered for this base type")

	// ErrEngineNotRegistered is returned when no engine can process the requested base type.
	ErrEngineNotRegistered = zerr.New("could not find an engine to process type")

	// ErrTransformerArgs is returned when a transformer or step is built without its required arguments.
	ErrTransformerArgs = zerr.New("transformer requires at least one argument")

	// ErrMethodNameCollision is returned when the synthesized method would hide a non-overridable base member.
	ErrMethodNameCollision = zerr.New("method name collides with a non-overridable base member")

	// ErrAnchorNotFound is returned when a pipeline step is inserted relative to a step that does not exist.
	ErrAnchorNotFound = zerr.New("pipeline anchor step not found")

	// ErrInvalidConfiguration is returned when an engine or factory option is invalid.
	ErrInvalidConfiguration = zerr.New("invalid configuration")

	// ErrScriptNotFound is returned when the requested url is not a valid script location.
	ErrScriptNotFound = zerr.New("could not find a script at the requested url")

	// ErrMissingGeneratedType is returned when a compiled batch does not contain the type expected for a url.
	ErrMissingGeneratedType = zerr.New("could not find the generated type for url")

	// ErrCorruptModule is returned when a persisted module fails its integrity check.
	ErrCorruptModule = zerr.New("persisted module is corrupt")

	// ErrModuleStoreReadFailed is returned when a persisted module cannot be read.
	ErrModuleStoreReadFailed = zerr.New("failed to read persisted module")

	// ErrModuleStoreWriteFailed is returned when a compiled module cannot be persisted.
	ErrModuleStoreWriteFailed = zerr.New("failed to write persisted module")

	// ErrModuleStoreCreateFailed is returned when the module cache directory cannot be created.
	ErrModuleStoreCreateFailed = zerr.New("failed to create module cache directory")

	// ErrScriptReadFailed is returned when a script file cannot be read.
	ErrScriptReadFailed = zerr.New("failed to read script")

	// ErrWatchFailed is returned when a directory cannot be watched for changes.
	ErrWatchFailed = zerr.New("failed to watch directory")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidInstance is returned when a created instance does not match the requested base type.
	ErrInvalidInstance = zerr.New("created instance does not match the requested type")

	// ErrCheckFailed is returned by the check command when any script fails to compile.
	ErrCheckFailed = zerr.New("one or more scripts failed to compile")
)
