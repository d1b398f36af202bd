// Command polyrepo 演示多态关联的读写，并可检查已注册的模型。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "polyrepo",
		Short:        "Polymorphic association resolution over pluggable repositories",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./polyrepo.yaml)")

	root.AddCommand(newDemoCmd(&configPath))
	root.AddCommand(newModelsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
