package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/claudelytics/cli/internal/config"
	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/apperr"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings in ~/.claudelytics.yaml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings (file, .env and environment combined)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			return output.WriteJSON(w, c)
		}
		data, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = w.Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting in the config file",
	Long: fmt.Sprintf(`Set one setting in the config file. An empty value clears an optional limit.

Keys: %s`, strings.Join(config.Keys(), ", ")),
	Example: `  claudelytics config set default_command session
  claudelytics config set budget.monthly_limit 200
  claudelytics config set token_limit ""`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return apperr.New(apperr.KindConfig, "locate config", err)
		}
		c, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveFile(path, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Config reset to defaults.")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return apperr.New(apperr.KindConfig, "locate config", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configResetCmd, configPathCmd)
}
