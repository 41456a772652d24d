package cmd

import "strings"

// envName turns a flag name into the suffix of its environment variable.
func envName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
