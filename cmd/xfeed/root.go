package main

import (
	"fmt"
	"log/slog"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands.
type app struct {
	cfgPath string
	verbose bool
	cfg     *Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "xfeed",
		Short: "Read your X following timeline from the terminal",
		Long: `xfeed fetches the "Following" timeline of an X account using the cookies of
a logged-in browser session. Store a session once with "xfeed session", then
fetch, page through, serve or listen to the timeline.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(a.verbose)
			// a missing .env is fine
			_ = godotenv.Load(".env")
			cfg, err := LoadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML config file")

	root.AddCommand(
		newFetchCmd(a),
		newPageCmd(a),
		newReadCmd(a),
		newSessionCmd(a),
		newServeCmd(a),
	)
	return root
}

// client builds a timeline client over the configured session store.
// The returned func closes the store.
func (a *app) client(hook func(endpoint string, success, rateLimited bool)) (*xfeed.Client, func(), error) {
	store, closeStore, err := a.cfg.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	cc := a.cfg.ClientConfig(store)
	cc.MetricsHook = hook
	c, err := xfeed.NewClient(cc)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return c, func() {
		if err := closeStore(); err != nil {
			slog.Warn("close session store", slog.Any("error", err))
		}
	}, nil
}

// apiKey prefers the flag over API_KEY and the config file.
func (a *app) apiKey(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.APIKey
}
