package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Pastebin and save the session key",
	Long:  "Exchanges a username and password for a Pastebin session key and saves it to session.file so later commands and the gateway reuse it. The password is read from stdin when neither --password nor pastebin.password is set.",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved Pastebin session",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "pastebin username (default: pastebin.username)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "pastebin password (default: pastebin.password, then stdin)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}

	username := firstNonEmpty(loginUsername, cfg.Pastebin.Username)
	if username == "" {
		return errors.New("a username is required: pass --username or set pastebin.username")
	}
	password := firstNonEmpty(loginPassword, cfg.Pastebin.Password)
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	key, err := agent.Login(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	if store == nil {
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	}
	if err := store.Save(key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s; session saved to %s\n", username, store.Path())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	_, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
