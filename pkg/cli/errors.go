package cli

import "fmt"

// ConfigError reports a runtime configuration file that could not be
// loaded or validated.
type ConfigError struct {
	File string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config file %s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps a configuration load failure with the file it came
// from.
func NewConfigError(file string, err error) *ConfigError {
	return &ConfigError{File: file, Err: err}
}

// CommandError tags a failure with the subcommand it came from, so the root
// error handler reports where a multi-step invocation went wrong.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s command failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}
