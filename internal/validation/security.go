// Package validation provides the checks that keep configuration values from
// escaping into a shell command line or outside the workspace tree.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\x00", "\n", "\r"}

var assignmentName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateArgument validates a command line argument to prevent injection attacks
func ValidateArgument(arg string) error {
	for _, char := range dangerousChars {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	return nil
}

// ValidateCommand validates a command name against an allowlist
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	if !allowedCommands[filepath.Base(command)] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	return nil
}

// ValidateAssignment validates a NAME=value argument handed to the build tool.
func ValidateAssignment(arg string) error {
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("expected NAME=value, got %q", arg)
	}
	if !assignmentName.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if err := ValidateArgument(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return nil
}

// ValidatePath validates a directory or file path from configuration. Absolute
// paths are allowed; traversal segments and shell metacharacters are not.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "\x00"} {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidateFileName validates a template file name that is resolved relative
// to a root directory. It must stay inside that root.
func ValidateFileName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("file name must be relative: %s", name)
	}
	if clean := filepath.Clean(name); clean == "." {
		return fmt.Errorf("file name cannot be empty")
	}
	return nil
}
