package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the testharness version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), getVersion())
	},
}

// getVersion reports the module version and, for VCS builds, the short
// revision the binary was built from.
func getVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	return formatVersion(info.Main.Version, info.Settings)
}

func formatVersion(module string, settings []debug.BuildSetting) string {
	version := module
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	for _, s := range settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return version + "+" + s.Value[:min(len(s.Value), 12)]
		}
	}
	return version
}
