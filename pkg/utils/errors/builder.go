package errors

import (
	"fmt"
	"sync"
)

// serviceRegistry tracks registered service codes to prevent conflicts.
var (
	serviceRegistry = map[int]string{
		ServiceCommon:           "common",
		ServiceInfraCache:       "cache",
		ServiceInfraVector:      "vector",
		ServiceIngest:           "ingest",
		ServiceEmbedding:        "embedding",
		ServiceThirdPartyZotero: "zotero",
	}
	serviceMu sync.RWMutex
)

// RegisterService registers a service code with a name.
// Panics if the service code is already registered by another service.
func RegisterService(code int, name string) {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	if existing, ok := serviceRegistry[code]; ok {
		if existing != name {
			panic(fmt.Sprintf("service code %d already registered by '%s', cannot register for '%s'", code, existing, name))
		}
		return
	}
	serviceRegistry[code] = name
}

// GetServiceName returns the registered name for a service code.
func GetServiceName(code int) (string, bool) {
	serviceMu.RLock()
	defer serviceMu.RUnlock()
	name, ok := serviceRegistry[code]
	return name, ok
}

// validateCodeParams validates service, category, and sequence parameters.
func validateCodeParams(service, category, sequence int) {
	if service < 0 || service > 99 {
		panic(fmt.Sprintf("errors: service code must be 0-99, got %d", service))
	}
	if category < 0 || category > 99 {
		panic(fmt.Sprintf("errors: category code must be 0-99, got %d", category))
	}
	if sequence < 0 || sequence > 999 {
		panic(fmt.Sprintf("errors: sequence must be 0-999, got %d", sequence))
	}
}

// NewError creates and registers a new Errno with the given parameters.
// Panics if registration fails or if messageEN is empty.
func NewError(service, category, sequence int, messageEN, messageZH string) *Errno {
	validateCodeParams(service, category, sequence)
	if messageEN == "" {
		panic("errors: english message is required")
	}
	return Register(New(MakeCode(service, category, sequence), messageEN, messageZH))
}

// NewRequestErr creates and registers a request/validation error.
func NewRequestErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryRequest, sequence, en, zh)
}

// NewNotFoundErr creates and registers a not found error.
func NewNotFoundErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryResource, sequence, en, zh)
}

// NewRateLimitErr creates and registers a rate limit error.
func NewRateLimitErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryRateLimit, sequence, en, zh)
}

// NewInternalErr creates and registers an internal error.
func NewInternalErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryInternal, sequence, en, zh)
}

// NewStorageErr creates and registers a persistence error.
func NewStorageErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryStorage, sequence, en, zh)
}

// NewCacheErr creates and registers a cache error.
func NewCacheErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryCache, sequence, en, zh)
}

// NewNetworkErr creates and registers a network error.
func NewNetworkErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryNetwork, sequence, en, zh)
}

// NewTimeoutErr creates and registers a timeout error.
func NewTimeoutErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryTimeout, sequence, en, zh)
}

// NewConfigErr creates and registers a configuration error.
func NewConfigErr(service, sequence int, en, zh string) *Errno {
	return NewError(service, CategoryConfig, sequence, en, zh)
}
