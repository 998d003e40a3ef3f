package media

import "os/exec"

// LaunchConfig controls how the processor starts ffmpeg and ffprobe.
type LaunchConfig struct {
	// HideWindow suppresses the console window ffmpeg would otherwise open
	// when the host is a GUI application on Windows. It has no effect on
	// other platforms.
	HideWindow bool
}

// DefaultLaunchConfig returns the configuration used by desktop builds.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{HideWindow: true}
}

// Apply configures cmd with the launch settings and returns it.
func (c LaunchConfig) Apply(cmd *exec.Cmd) *exec.Cmd {
	c.apply(cmd)
	return cmd
}
