package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/epi-risk-server/internal/config"
	"github.com/epi-risk-server/internal/setup"
)

var setupFlags struct {
	path         string
	force        bool
	clientConfig string
	name         string
	binary       string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a starter configuration or register with an MCP client",
}

var setupInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.WriteDefaults(setupFlags.path, setupFlags.force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", setupFlags.path)
		return nil
	},
}

var setupMCPClientCmd = &cobra.Command{
	Use:   "mcp-client",
	Short: "Register `epirisk mcp` in a desktop MCP client configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := setup.RegisterServer(setup.Options{
			ClientConfigPath: setupFlags.clientConfig,
			ServerName:       setupFlags.name,
			BinaryPath:       setupFlags.binary,
			ConfigFile:       configFile,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s; restart the client to pick it up\n",
			setupFlags.name, path)
		return nil
	},
}

var setupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether epirisk is registered with the MCP client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := setup.GetStatus(setupFlags.clientConfig, setupFlags.name)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), status)
	},
}

func init() {
	defaultPath := filepath.Join(".", "config.yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		defaultPath = filepath.Join(dir, "epi-risk", "config.yaml")
	}
	setupInitCmd.Flags().StringVar(&setupFlags.path, "path", defaultPath, "where to write the configuration")
	setupInitCmd.Flags().BoolVar(&setupFlags.force, "force", false, "replace an existing file")

	for _, c := range []*cobra.Command{setupMCPClientCmd, setupStatusCmd} {
		c.Flags().StringVar(&setupFlags.clientConfig, "client-config", "", "MCP client config file (default: desktop client location)")
		c.Flags().StringVar(&setupFlags.name, "name", setup.DefaultServerName, "server name in the client config")
	}
	setupMCPClientCmd.Flags().StringVar(&setupFlags.binary, "binary", "", "epirisk binary (default: this executable)")

	setupCmd.AddCommand(setupInitCmd, setupMCPClientCmd, setupStatusCmd)
}
