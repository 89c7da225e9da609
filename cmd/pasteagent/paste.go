package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	pasteName       string
	pasteFormat     string
	pasteVisibility string
	pasteExpire     string
	pasteFolder     string
	pasteAnonymous  bool

	listLimit int
	listJSON  bool
)

var pasteCmd = &cobra.Command{
	Use:   "paste [file]",
	Short: "Create a paste from a file or stdin and print its URL",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPaste,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the logged-in user's pastes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <paste-key>",
	Short: "Delete one of the logged-in user's pastes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var rawCmd = &cobra.Command{
	Use:   "raw <paste-key>",
	Short: "Print the raw text of one of the logged-in user's pastes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRaw,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show the logged-in user's account details",
	Args:  cobra.NoArgs,
	RunE:  runUser,
}

func init() {
	pasteCmd.Flags().StringVarP(&pasteName, "name", "n", "", "paste title (default: file name)")
	pasteCmd.Flags().StringVarP(&pasteFormat, "format", "f", "", "syntax highlighting format, e.g. go or python")
	pasteCmd.Flags().StringVar(&pasteVisibility, "visibility", "unlisted", "public, unlisted or private")
	pasteCmd.Flags().StringVarP(&pasteExpire, "expire", "e", "N", "expiry: N, 10M, 1H, 1D, 1W, 2W, 1M, 6M or 1Y")
	pasteCmd.Flags().StringVar(&pasteFolder, "folder", "", "folder key")
	pasteCmd.Flags().BoolVar(&pasteAnonymous, "anonymous", false, "create the paste as a guest even when logged in")

	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, fmt.Sprintf("maximum pastes to list, 1 to %d (default: provider default)", pastebin.MaxResultsLimit))
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(pasteCmd, listCmd, deleteCmd, rawCmd, userCmd)
}

func runPaste(cmd *cobra.Command, args []string) error {
	visibility, err := pastebin.ParseVisibility(pasteVisibility)
	if err != nil {
		return err
	}

	var (
		code []byte
		name = pasteName
	)
	if len(args) == 1 && args[0] != "-" {
		code, err = os.ReadFile(args[0])
		if name == "" {
			name = filepath.Base(args[0])
		}
	} else {
		code, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading paste content: %w", err)
	}

	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if pasteAnonymous {
		agent.Logout()
	} else if visibility == pastebin.Private || pasteFolder != "" {
		// Private pastes and folders belong to an account.
		if err := ensureSession(cmd.Context(), cfg, agent, store); err != nil {
			return err
		}
	}

	pasteURL, err := agent.CreatePaste(cmd.Context(), pastebin.NewPaste{
		Code:       string(code),
		Name:       name,
		Format:     pasteFormat,
		Visibility: visibility,
		Expire:     pastebin.Expiry(strings.ToUpper(pasteExpire)),
		FolderKey:  pasteFolder,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pasteURL)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if err := ensureSession(cmd.Context(), cfg, agent, store); err != nil {
		return err
	}

	pastes, err := agent.ListPastes(cmd.Context(), listLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pastes)
	}
	writePasteTable(out, pastes)
	return nil
}

func writePasteTable(out io.Writer, pastes []pastebin.Paste) {
	if len(pastes) == 0 {
		fmt.Fprintln(out, "no pastes")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Title", "Format", "Visibility", "Hits", "Created"})
	for _, p := range pastes {
		t.AppendRow(table.Row{
			p.Key,
			p.Title,
			p.FormatShort,
			pastebin.Visibility(p.Private).String(),
			p.Hits,
			time.Unix(p.Date, 0).UTC().Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d pastes", len(pastes))})
	t.Render()
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if err := ensureSession(cmd.Context(), cfg, agent, store); err != nil {
		return err
	}
	if err := agent.DeletePaste(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runRaw(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if err := ensureSession(cmd.Context(), cfg, agent, store); err != nil {
		return err
	}
	text, err := agent.RawPaste(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), text)
	return err
}

func runUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	agent, store, err := newAgent(cfg)
	if err != nil {
		return err
	}
	if err := ensureSession(cmd.Context(), cfg, agent, store); err != nil {
		return err
	}
	user, err := agent.UserDetails(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}
