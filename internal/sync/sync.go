//go:build !asock_deadlock

// Package sync aliases the standard sync primitives.
// Build with the asock_deadlock tag to swap the mutexes
// for github.com/sasha-s/go-deadlock ones.
package sync

import "sync"

type (
	Mutex     = sync.Mutex
	RWMutex   = sync.RWMutex
	Once      = sync.Once
	WaitGroup = sync.WaitGroup
	Locker    = sync.Locker
	Map       = sync.Map
	Cond      = sync.Cond
	Pool      = sync.Pool
)

var OnceFunc = sync.OnceFunc
