//go:build !linux

package i2c

import "errors"

// Open always fails on non-Linux platforms.
func Open() (func() error, error) {
	return nil, errors.New("i2c is only supported on Linux")
}
