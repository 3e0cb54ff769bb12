//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and runs the testbed with config.toml.
func (Run) Demo() error {
	mg.Deps(Build.Demo)
	fmt.Println("Run testbed...")
	if _, err := executeCmd("bin/testbed", withStream()); err != nil {
		return err
	}
	return nil
}
