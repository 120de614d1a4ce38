package main

import (
	"os"

	"github.com/spf13/cobra"

	mergecmder "github.com/immanlabs/gateway/cmd/gateway/merge"
	servecmder "github.com/immanlabs/gateway/cmd/gateway/serve"
)

func main() {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "Chat and image inference gateway",
		SilenceUsage: true,
	}

	root.AddCommand(servecmder.NewServeCmd())
	root.AddCommand(mergecmder.NewMergeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
