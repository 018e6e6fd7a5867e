package cache

import (
	"errors"

	"github.com/IvanBrykalov/slotcache/policy"
)

var (
	// ErrKeyNotFound is returned by Get and the slot accessors for a key
	// or slot that is not resident.
	ErrKeyNotFound = errors.New("cache: key not found")

	// ErrNotSupported is returned by slot accessors when the policy does
	// not allow positional access.
	ErrNotSupported = errors.New("cache: positional access not supported")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrInvalidConfig is returned by New for a capacity or policy
	// parameter that cannot produce a usable cache.
	ErrInvalidConfig = policy.ErrInvalidConfig
)
