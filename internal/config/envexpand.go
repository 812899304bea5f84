package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in raw YAML bytes using the
// standard shell-style syntax. Missing variables expand to empty string;
// Validate is what catches required fields left empty by a missing variable.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
