package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored X session",
	}
	cmd.AddCommand(
		newSessionImportCmd(a),
		newSessionBrowserCmd(a),
		newSessionShowCmd(a),
		newSessionClearCmd(a),
	)
	return cmd
}

// withAuth opens the store and wires an Auth over narrow and shared.
func (a *app) withAuth(narrow, shared xfeed.CookieSource, fn func(*xfeed.Auth) error) error {
	store, closeStore, err := a.cfg.OpenStore()
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(xfeed.NewAuth(narrow, shared, store))
}

func newSessionImportCmd(a *app) *cobra.Command {
	var jarFile string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a session from pasted cookie values or a cookie-jar export",
		RunE: func(cmd *cobra.Command, args []string) error {
			var src xfeed.CookieSource
			if jarFile != "" {
				src = xfeed.JarFileSource{Path: jarFile}
			} else {
				jar, err := promptCookies(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				src = xfeed.StaticSource(jar)
			}
			return a.withAuth(src, nil, func(auth *xfeed.Auth) error {
				creds, err := auth.CaptureAndStoreSession(cmd.Context())
				if err != nil {
					return failure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session stored (%s)\n", describe(creds))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jarFile, "jar", "", "JSON cookie-jar export to import")
	return cmd
}

func newSessionBrowserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Capture the session from a logged-in local browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuth(xfeed.BrowserSource{}, a.cfg.JarSource(), func(auth *xfeed.Auth) error {
				creds, err := auth.CaptureWithRetry(cmd.Context(), xfeed.DefaultCaptureRetry)
				if err != nil {
					return failure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session stored (%s)\n", describe(creds))
				return nil
			})
		},
	}
	return cmd
}

func newSessionShowCmd(a *app) *cobra.Command {
	var showToken bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Describe the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuth(nil, nil, func(auth *xfeed.Auth) error {
				token, err := auth.LoadStoredSession(cmd.Context())
				if err != nil {
					return err
				}
				if token == "" {
					return failure(xfeed.ErrSessionMissing)
				}
				if showToken {
					fmt.Fprintln(cmd.OutOrStdout(), token)
					return nil
				}
				creds, err := xfeed.DecodeSession(token)
				if err != nil {
					return failure(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), describe(creds))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showToken, "token", false, "print the raw session token (usable as API_KEY)")
	return cmd
}

func newSessionClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuth(nil, nil, func(auth *xfeed.Auth) error {
				if err := auth.ClearSession(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
				return nil
			})
		},
	}
}

// promptCookies asks for each cookie. Input is hidden on a terminal.
func promptCookies(in io.Reader, prompt io.Writer) (xfeed.CookieJar, error) {
	fields := []struct {
		name     string
		optional bool
	}{
		{xfeed.CookieAuthToken, false},
		{xfeed.CookieCT0, false},
		{xfeed.CookieKDT, true},
		{xfeed.CookieTWID, true},
	}
	f, isFile := in.(*os.File)
	hidden := isFile && term.IsTerminal(int(f.Fd()))
	lines := bufio.NewReader(in)

	jar := xfeed.CookieJar{}
	for _, field := range fields {
		label := field.name
		if field.optional {
			label += " (optional)"
		}
		fmt.Fprintf(prompt, "%s: ", label)

		var value string
		if hidden {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", field.name, err)
			}
			value = string(b)
		} else {
			line, err := lines.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				if errors.Is(err, io.EOF) && field.optional {
					break
				}
				return nil, fmt.Errorf("read %s: %w", field.name, err)
			}
			value = line
		}
		if v := strings.TrimSpace(value); v != "" {
			jar[field.name] = v
		}
	}
	return jar, nil
}

// describe summarizes credentials without revealing them.
func describe(c xfeed.Credentials) string {
	mask := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("auth_token=%s ct0=%s kdt=%t twid=%t", mask(c.AuthToken), mask(c.CT0), c.KDT != "", c.TWID != "")
}
