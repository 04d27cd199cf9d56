// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

// LifecycleState is the supervisor's single-writer, many-reader program
// state. Loaded means the classifier is installed but not attached to any
// interface; Started means it is attached and classifying traffic;
// Terminated is the universal, irreversible shutdown signal.
type LifecycleState uint8

const (
	Loaded LifecycleState = iota
	Started
	Terminated
)

func (s LifecycleState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Started:
		return "started"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// RunStatus is the coarse status exposed over the wire: Loaded and
// Terminated both read as Stopped, only Started reads as Running.
type RunStatus uint8

const (
	StatusStopped RunStatus = iota
	StatusRunning
)

func (s LifecycleState) Status() RunStatus {
	if s == Started {
		return StatusRunning
	}
	return StatusStopped
}

func (s RunStatus) String() string {
	if s == StatusRunning {
		return "running"
	}
	return "stopped"
}
