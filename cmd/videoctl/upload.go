package main

import (
	"alcyxob/navistream/internal/client"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	serverURL string
	tokenFile string
)

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".navistream-token"
	}
	return filepath.Join(home, ".navistream", "token")
}

func readToken() (string, error) {
	if t := os.Getenv("NAVISTREAM_TOKEN"); t != "" {
		return t, nil
	}
	b, err := os.ReadFile(tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("not logged in; run videoctl login first")
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func getLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("NAVISTREAM_PASSWORD")
			}
			if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = string(b)
			}

			c := client.New(serverURL)
			user, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(tokenFile), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(tokenFile, []byte(c.Token()+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", color.GreenString(user.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func getUploadCmd() *cobra.Command {
	var title, description, category string
	var noColor bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video file with progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken()
			if err != nil {
				return err
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			c := client.New(serverURL, client.WithToken(token))
			rep := client.NewTextReporter(cmd.OutOrStdout(), noColor || color.NoColor)
			_, err = c.UploadFile(cmd.Context(), args[0], title, description, category, rep)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "video title (defaults to the file name)")
	cmd.Flags().StringVar(&description, "description", "", "video description")
	cmd.Flags().StringVar(&category, "category", "other", "gaming, music, education, entertainment, sports or other")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	return cmd
}
