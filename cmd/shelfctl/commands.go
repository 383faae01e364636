package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
)

type rootOptions struct {
	session string
	socket  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "shelfctl",
		Short:         "Talk to a running shelf monitor.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&o.session, "session", os.Getenv("SHELF_SESSION"), "monitor session ID")
	cmd.PersistentFlags().StringVar(&o.socket, "socket", "", "monitor socket (overrides --session)")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 5*time.Second, "per-command timeout")

	addPing(cmd, o)
	addRegister(cmd, o)
	addUpdate(cmd, o)
	addUnregister(cmd, o)
	addTick(cmd, o)
	addTag(cmd, o)
	addIcon(cmd, o)
	addOpen(cmd, o)
	addConfig(cmd, o)
	addResize(cmd, o)
	addPos(cmd, o)
	return cmd
}

// run dials the monitor and calls fn with a deadline
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, c *host.Commands) error) error {
	socket := o.socket
	if socket == "" {
		socket = host.SocketPath(o.session)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	client, err := host.Dial(ctx, socket)
	if err != nil {
		return fmt.Errorf("no monitor at %s: %w", socket, err)
	}
	defer client.Close()
	return fn(ctx, host.NewCommands(client))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addPing(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that the monitor answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				start := time.Now()
				if err := c.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pong %s\n", time.Since(start).Round(time.Microsecond))
				return nil
			})
		},
	})
}

func addRegister(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "register <path>",
		Short: "Start tracking a file and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				id, err := c.Register(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	})
}

func addUpdate(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "update <id>",
		Short: "Print the tracker state of an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				state, err := c.Update(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			})
		},
	})
}

func addUnregister(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "unregister <id>",
		Short: "Stop tracking an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				return c.Unregister(ctx, args[0])
			})
		},
	})
}

func addTick(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "tick",
		Short: "Apply pending filesystem events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				return c.Tick(ctx)
			})
		},
	})
}

func addTag(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "tag <path>",
		Short: "Print the identity tag of a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				tag, ok, err := c.FileTag(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s has no tag", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), tag)
				return nil
			})
		},
	})
}

func addIcon(topLevel *cobra.Command, o *rootOptions) {
	var out string
	cmd := &cobra.Command{
		Use:   "icon <path>",
		Short: "Write the icon of a path as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				data, ok, err := c.FileIcon(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no icon for %s", args[0])
				}
				if out == "" || out == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(out, data, 0644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	topLevel.AddCommand(cmd)
}

func addOpen(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "open <path>",
		Short: "Reveal a file in the file manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				return c.OpenDirectory(ctx, args[0])
			})
		},
	})
}

func addConfig(topLevel *cobra.Command, o *rootOptions) {
	var write string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the widget config as the monitor serves it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				cfg, err := c.ReadConfig(ctx)
				if err != nil {
					return err
				}
				if write != "" {
					return config.SaveConfig(write, cfg)
				}
				return printJSON(cmd, cfg)
			})
		},
	}
	cmd.Flags().StringVarP(&write, "write", "w", "", "save the served config as YAML to this file")
	topLevel.AddCommand(cmd)
}

func addResize(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "resize <x> <y> <w> <h>",
		Short: "Move and resize the widget window",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var geom [4]int
			for i, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				geom[i] = n
			}
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				return c.Resize(ctx, geom[0], geom[1], geom[2], geom[3])
			})
		},
	})
}

func addPos(topLevel *cobra.Command, o *rootOptions) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "pos",
		Short: "Print the widget window position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *host.Commands) error {
				x, y, ok, err := c.WindowPosition(ctx)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "unknown")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %d\n", x, y)
				return nil
			})
		},
	})
}
