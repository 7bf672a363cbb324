// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"errors"
	"fmt"
)

// package errors
var (
	// ErrSwapchainOutOfDate is returned by acquire and present when the surface
	// changed underneath the swapchain. It is recovered by recreating the
	// swapchain and is not a failure.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")

	// ErrNotLoaded is returned when a resource index was never preloaded.
	ErrNotLoaded = errors.New("resource not loaded")
)

// ConfigurationError reports a request the renderer cannot satisfy as configured:
// an unsupported format/usage pair, a missing resource index, an unsupported
// swapchain size or a missing shader. It is never retried.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Op, e.Reason)
}

// Configurationf builds a ConfigurationError.
func Configurationf(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// DeviceError reports a failed device call such as an allocation
// or pipeline creation.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying device error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDevice reports whether err is or wraps a DeviceError.
func IsDevice(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// InvariantError signals a broken platform assumption, such as the swapchain
// handing out an image other than the predicted slot. The renderer cannot
// continue after one.
type InvariantError struct {
	What string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.What
}

// Invariantf builds an InvariantError.
func Invariantf(format string, args ...interface{}) error {
	return &InvariantError{What: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err is or wraps an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
