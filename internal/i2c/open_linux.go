//go:build linux

package i2c

import (
	"fmt"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all" // register host drivers
)

// Open initialises the I2C driver. The returned function releases it and
// every bus obtained from Bus.
func Open() (func() error, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, fmt.Errorf("init i2c: %w", err)
	}
	return embd.CloseI2C, nil
}
