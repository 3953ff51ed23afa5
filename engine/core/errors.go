package core

import (
	"errors"
)

var (
	// ErrSwapchainOutOfDate signals that the presentation surface changed and
	// the swapchain must be recreated before the next present.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date, needs recreation")

	// ErrDeviceLost is unrecoverable. Anything that hits it should bail out.
	ErrDeviceLost = errors.New("device lost")

	ErrUnknown = errors.New("unknown")
)
