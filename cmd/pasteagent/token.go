package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/pasteagent/internal/auth"
	"github.com/alecgard/pasteagent/internal/crypto"
	"github.com/spf13/cobra"
)

var genTokenCmd = &cobra.Command{
	Use:   "gen-token",
	Short: "Generate a gateway bearer token and its server.token_hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, hash, err := auth.GenerateToken()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "token:      %s\n", token)
		fmt.Fprintf(out, "token_hash: %s\n", hash)
		fmt.Fprintln(out, "\nThe token is shown once. Put token_hash under server: in the config.")
		return nil
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt server.token_hash for an existing token",
	Long:  "Prints the bcrypt hash of a token given as an argument or, when omitted, read from the first line of stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no token given on the command line or stdin")
			}
			token = strings.TrimSpace(line)
		}
		hash, err := auth.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a session.encryption_key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genTokenCmd, hashTokenCmd, keygenCmd)
}
