//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests. Device backends need a window and are not covered.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests under the race detector, which covers the asset watcher.
func (Test) Race() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./engine/..."), withStream()); err != nil {
		return err
	}
	return nil
}
