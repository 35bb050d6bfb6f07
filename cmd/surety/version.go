package main

import (
	"fmt"
	"runtime"

	cmtversion "github.com/cometbft/cometbft/version"
	"github.com/spf13/cobra"
)

// GitCommit is set with -ldflags at build time.
var GitCommit string

const appVersion = "0.1.0"

func versionString() string {
	vsn := appVersion
	if len(GitCommit) >= 8 {
		vsn += "-" + GitCommit[:8]
	}
	return vsn
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the version",
	Aliases: []string{"V"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("surety %s\ncometbft %s abci %s\n%s %s/%s\n",
			versionString(), cmtversion.TMCoreSemVer, cmtversion.ABCISemVer,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
