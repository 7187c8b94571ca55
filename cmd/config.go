package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"copilot-bridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the copilot bridge configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for bridge settings.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	color.Blue("Copilot Bridge Configuration Setup")
	color.Yellow("Follow the prompts to configure the bridge.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("\nPort [%d]: ", config.DefaultPort)
	portInput, _ := reader.ReadString('\n')
	portInput = strings.TrimSpace(portInput)

	port := config.DefaultPort

	if portInput != "" {
		parsed, err := strconv.Atoi(portInput)
		if err != nil {
			return fmt.Errorf("invalid port: %q", portInput)
		}

		port = parsed
	}

	fmt.Print("Shared token (required, clients authenticate with it): ")
	token, _ := reader.ReadString('\n')
	token = strings.TrimSpace(token)

	fmt.Print("Copilot API key (optional, discovered from apps.json when empty): ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("Default model (optional): ")
	model, _ := reader.ReadString('\n')
	model = strings.TrimSpace(model)

	cfg := &config.Config{
		Port:  port,
		Token: token,
		Copilot: config.Copilot{
			APIKey:       apiKey,
			DefaultModel: model,
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return err
	}

	color.Green("Configuration saved to %s", cfgMgr.GetPath())

	if token == "" {
		color.Yellow("Warning: no shared token set; all protected routes will return 401")
	}

	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found at %s", cfgMgr.GetPath())
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	display := *cfg
	if display.Token != "" {
		display.Token = "********"
	}

	if display.Copilot.APIKey != "" {
		display.Copilot.APIKey = "********"
	}

	data, err := json.MarshalIndent(display, "", "  ")
	if err != nil {
		return err
	}

	color.Blue("Configuration (%s):", cfgMgr.GetPath())
	fmt.Println(string(data))

	return nil
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found at %s", cfgMgr.GetPath())
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		color.Red("Configuration is invalid: %v", err)
		return err
	}

	if cfg.Token == "" {
		color.Yellow("Warning: no shared token set; all protected routes will return 401")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		color.Red("Invalid port: %d", cfg.Port)
		return fmt.Errorf("port out of range: %d", cfg.Port)
	}

	color.Green("Configuration is valid")

	return nil
}
