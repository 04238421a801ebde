package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("agora version %s\n", version)
		if verbose {
			cmd.Println(mutedStyle.Render(buildDetails(debug.ReadBuildInfo())))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildDetails describes the toolchain and VCS revision the binary was
// built from.
func buildDetails(info *debug.BuildInfo, ok bool) string {
	details := runtime.Version()
	if !ok || info == nil {
		return details
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			rev := s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
			details += " rev " + rev
		}
		if s.Key == "vcs.modified" && s.Value == "true" {
			details += " (modified)"
		}
	}
	return details
}
