package engine

import "errors"

var (
	// ErrEngineTimeout means a search exceeded its per-call deadline. The
	// subprocess is killed and the handle must not be returned to the pool.
	ErrEngineTimeout = errors.New("engine timeout")
	// ErrEngineCrashed means the subprocess exited or its pipe closed
	// mid-search. The pool respawns lazily on the next acquire.
	ErrEngineCrashed = errors.New("engine crashed")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("engine pool closed")
)
