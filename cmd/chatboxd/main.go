package main

import (
	"fmt"
	"os"

	"github.com/TheScouser/chatbox-sub000/internal/cli"
	"github.com/TheScouser/chatbox-sub000/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatboxd",
		Short: "Chatbox daemon and CLI",
		Long:  "Chatbox daemon for running the API server and embedding pending knowledge",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.EmbedCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
