//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles every executable into ./bin
func Build() error {
	mg.Deps(BuildMarlin)
	mg.Deps(BuildSimRaw)
	fmt.Println("Compilation finished")
	return nil
}

// BuildMarlin needs cgo for the HDF5 outputs
func BuildMarlin() error {
	fmt.Println("Building marlin executable...")
	return goCommand(true, "build", "-o", "./bin/marlin", "./marlin")
}

func BuildSimRaw() error {
	fmt.Println("Building simraw executable...")
	return goCommand(false, "build", "-o", "./bin/simraw", "./simraw")
}

// Test runs the unit tests. The h5out tests need libhdf5 like the marlin binary.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand(true, "test", "./...")
}

func goCommand(cgo bool, args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Env = os.Environ()
	if cgo {
		cmd.Env = append(cmd.Env,
			"CGO_ENABLED=1",
			fmt.Sprintf("CGO_LDFLAGS=%s", os.Getenv("CGO_LDFLAGS")),
			fmt.Sprintf("CGO_CFLAGS=%s", os.Getenv("CGO_CFLAGS")))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
