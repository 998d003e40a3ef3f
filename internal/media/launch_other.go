//go:build !windows

package media

import "os/exec"

func (c LaunchConfig) apply(*exec.Cmd) {}
