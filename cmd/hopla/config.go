// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/hopla/internal/cli"
	"github.com/jeranaias/hopla/internal/config"
	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/prompt"
	"github.com/jeranaias/hopla/internal/router"
)

// =============================================================================
// CONFIG
// =============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or write the configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (API keys redacted)",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt the API keys stored in the config file",
	Long: `Encrypt every plaintext api_key of the config file with a passphrase.
The passphrase is read from ` + config.PassphraseEnv + `, or prompted for.
hopla decrypts the keys at startup with the same variable.`,
	Args: cobra.NoArgs,
	RunE: runConfigEncrypt,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd, configEncryptCmd, configPathCmd)
	rootCmd.AddCommand(configCmd, providersCmd, promptsCmd)
}

// redactKey hides all but the last four characters of an API key.
func redactKey(key string) string {
	switch {
	case key == "":
		return ""
	case config.IsEncrypted(key):
		return config.EncryptedPrefix + "..."
	case len(key) <= 8:
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	out.Providers = make(map[string]config.ProviderSettings, len(cfg.Providers))
	for name, ps := range cfg.Providers {
		ps.APIKey = redactKey(ps.APIKey)
		out.Providers[name] = ps
	}
	return &out
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	source := a.cfgPath
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintln(out, cli.DimStyle.Render("# source: "+source))
	return toml.NewEncoder(out).Encode(redacted(a.cfg))
}

func defaultConfigPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.ConfigPathTOML()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", cli.SuccessStyle.Render("[OK]"), path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath(flagConfig)
	if err != nil {
		return err
	}
	if path == "" {
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
		path += " (not created)"
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// readPassphrase returns the passphrase from the environment, else prompts
// for it twice on the terminal.
func readPassphrase(w io.Writer) (string, error) {
	if p := os.Getenv(config.PassphraseEnv); p != "" {
		return p, nil
	}
	if err := cli.RequiresTTY("config encrypt"); err != nil {
		return "", fmt.Errorf("%w: %w", config.ErrNoPassphrase, err)
	}

	fd := int(os.Stdin.Fd())
	fmt.Fprint(w, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, "Repeat passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	if len(first) == 0 {
		return "", config.ErrNoPassphrase
	}
	return string(first), nil
}

func runConfigEncrypt(cmd *cobra.Command, args []string) error {
	path, err := configPath(flagConfig)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no config file found (run hopla config init first)")
	}

	passphrase, err := readPassphrase(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := os.Setenv(config.PassphraseEnv, passphrase); err != nil {
		return err
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	n, err := cfg.EncryptSecrets(passphrase)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.DimStyle.Render("No plaintext API keys found."))
		return nil
	}

	if filepath.Ext(path) == ".json" {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Encrypted %d API key(s) in %s\n", cli.SuccessStyle.Render("[OK]"), n, path)
	return nil
}

// =============================================================================
// PROVIDERS
// =============================================================================

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show providers and the one selected for each purpose",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	printProviders(cmd.OutOrStdout(), a.router)
	return nil
}

func printProviders(w io.Writer, r *router.Router) {
	cfg := r.Config()
	fmt.Fprintln(w, cli.TitleStyle.Render("Providers"))
	for _, t := range llm.ProviderTypes {
		ps, ok := cfg.Provider(t.String())
		status := "disabled"
		if ok && ps.Enabled {
			status = "enabled"
		}
		if !cfg.ExternalAI && t != llm.ProviderOllama {
			status = "external AI off"
		} else if status == "enabled" && !slices.Contains(r.EnabledProviders(), t) {
			status = "not local"
		}
		detail := ""
		if ok {
			detail = ps.Model + "  " + ps.Endpoint
		}
		fmt.Fprintf(w, "  %s %s %s\n", cli.RenderStatus(status), cli.RenderLabel(t.String(), 10), cli.DimStyle.Render(detail))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.SectionStyle.Render("Selected"))
	for _, p := range []llm.Purpose{llm.PurposeChat, llm.PurposeCompletion, llm.PurposeQuickAction} {
		fmt.Fprintf(w, "  %s%s\n", cli.RenderLabel(p.String()+":"), cli.ValueStyle.Render(r.ProviderName(p)))
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List quick actions and prompts",
	Args:  cobra.NoArgs,
	RunE:  runPromptsList,
}

var promptsInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the built-in prompts as a YAML file to edit",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsInit,
}

func init() {
	promptsCmd.AddCommand(promptsInitCmd)
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	printPrompts(cmd.OutOrStdout(), a.prompts)
	return nil
}

func printPrompts(w io.Writer, lib *prompt.Library) {
	fmt.Fprintln(w, cli.TitleStyle.Render("Quick actions"))
	for _, q := range lib.QuickActions {
		fmt.Fprintf(w, "  %s\n", q.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.TitleStyle.Render("Prompts"))
	for _, p := range lib.Prompts {
		fmt.Fprintf(w, "  %s%s\n", cli.RenderLabel(p.Name), cli.DimStyle.Render(p.Description))
	}
}

func runPromptsInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err == nil {
		return fmt.Errorf("%s already exists", args[0])
	}
	if err := prompt.Defaults().Save(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s (set prompts_file to use it)\n", cli.SuccessStyle.Render("[OK]"), args[0])
	return nil
}
