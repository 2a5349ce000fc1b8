package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for hyperdag
var RootCmd = &cobra.Command{
	Use:              "hyperdag",
	Short:            "hyperdag ledger node",
	TraverseChildren: true,
}
