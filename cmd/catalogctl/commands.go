package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

func parseCollection(name string) (catalog.Collection, error) {
	c, ok := catalog.ParseCollection(name)
	if !ok {
		return "", fmt.Errorf("unknown collection %q (want devices, users, greenhouses or services)", name)
	}
	return c, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "List every record of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCollection(args[0])
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			recs, err := client.List(cmd.Context(), c)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []catalog.Record{}
			}
			return opts.printJSON(recs)
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <field>=<value>",
		Short: "Find the first record matching one field",
		Long: `Find the first record of a collection whose field equals value.

Examples:
  catalogctl get devices id=12
  catalogctl get user email_addr=ana@example.com
  catalogctl get greenhouse plant_id=3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCollection(args[0])
			if err != nil {
				return err
			}
			key, value, ok := strings.Cut(args[1], "=")
			if !ok || key == "" {
				return fmt.Errorf("lookup must be field=value, got %q", args[1])
			}
			field, err := catalog.ParseField(c, key)
			if err != nil {
				return err
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := client.Get(cmd.Context(), c, field, value)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				env, envErr := resp.Envelope()
				if envErr != nil {
					return fmt.Errorf("catalog answered %d", resp.StatusCode)
				}
				return errors.New(env.Msg)
			}
			rec, err := resp.Record()
			if err != nil {
				return err
			}
			return opts.printJSON(rec)
		},
	}
}

func newNewIDCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new-id <collection>",
		Short: "Allocate a fresh identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCollection(args[0])
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			id, err := client.AllocateID(cmd.Context(), c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(opts.out, id)
			return err
		},
	}
}

// newSlotCmd shows a singleton pointer. use is the command name, which is
// the slot name with dashes.
func newSlotCmd(opts *rootOptions, use, short string) *cobra.Command {
	slot := catalog.Slot(strings.ReplaceAll(use, "-", "_"))
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			sl, err := client.ReadSingleton(cmd.Context(), slot)
			if err != nil {
				return err
			}
			return opts.printJSON(sl)
		},
	}
}
