package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/greenhouse-catalog/internal/catalogclient"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
)

const defaultCatalogURL = "http://127.0.0.1:8080"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	url      string
	timeout  time.Duration
	logLevel string
	out      io.Writer
	log      *logging.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Inspect a greenhouse catalog",
		Long: `Inspect a running greenhouse catalog over its REST API.

The catalog URL defaults to $CATALOG_PEER_URL, then ` + defaultCatalogURL + `.

Examples:
  catalogctl list devices
  catalogctl get device name=dht11-north
  catalogctl new-id services
  catalogctl broker --url http://10.0.0.2:8080`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if _, err := logging.ParseLevel(opts.logLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		opts.log = logging.NewTo(cmd.ErrOrStderr(), config.LoggingConfig{
			Level:  opts.logLevel,
			Format: "text",
		}, "catalogctl", version)
		return nil
	}

	defaultURL := os.Getenv("CATALOG_PEER_URL")
	if defaultURL == "" {
		defaultURL = defaultCatalogURL
	}
	root.PersistentFlags().StringVarP(&opts.url, "url", "u", defaultURL, "catalog base URL")
	root.PersistentFlags().DurationVarP(&opts.timeout, "timeout", "t", catalogclient.DefaultTimeout, "per-request timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level on stderr (debug, info, warn, error)")
	root.SetOut(out)

	root.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newNewIDCmd(opts),
		newSlotCmd(opts, "broker", "Show the message broker pointer"),
		newSlotCmd(opts, "device-catalog", "Show the device catalog pointer"),
	)
	return root
}

func (o *rootOptions) client() (*catalogclient.Client, error) {
	if o.log != nil {
		o.log.Debug("using catalog", "url", o.url, "timeout", o.timeout)
	}
	return catalogclient.New(catalogclient.Config{BaseURL: o.url, Timeout: o.timeout})
}

func (o *rootOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
