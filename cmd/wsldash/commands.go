package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wsldash/internal/dashboard"
	"wsldash/internal/wsl"
)

func newAutostartCmd(a *app) *cobra.Command {
	var self, silent bool
	cmd := &cobra.Command{
		Use:   "autostart <distro> <on|off>",
		Short: "Toggle login-time startup for a distro (or --self for the dashboard)",
		Args: func(cmd *cobra.Command, args []string) error {
			want := 2
			if self, _ := cmd.Flags().GetBool("self"); self {
				want = 1
			}
			if len(args) != want {
				return fmt.Errorf("expected %d argument(s)", want)
			}
			state := args[len(args)-1]
			if state != "on" && state != "off" {
				return fmt.Errorf("state must be on or off, got %q", state)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			enable := args[len(args)-1] == "on"
			if self {
				return a.auto.SetSelfEnabled(enable, silent)
			}
			return a.auto.SetEnabled(args[0], enable)
		},
	}
	cmd.Flags().BoolVar(&self, "self", false, "manage the dashboard's own autostart")
	cmd.Flags().BoolVar(&silent, "silent", false, "start the dashboard minimized (with --self)")
	return cmd
}

func newConfCmd(a *app) *cobra.Command {
	conf := &cobra.Command{
		Use:   "conf",
		Short: "Inspect or edit a distro's wsl.conf",
	}

	show := &cobra.Command{
		Use:   "show <distro>",
		Short: "Print the managed wsl.conf switches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.executor.ReadConf(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "systemd:            %t\n", c.Systemd)
			fmt.Fprintf(out, "generateHosts:      %t\n", c.GenerateHosts)
			fmt.Fprintf(out, "generateResolvConf: %t\n", c.GenerateResolvConf)
			fmt.Fprintf(out, "interop:            %t\n", c.InteropEnabled)
			fmt.Fprintf(out, "appendWindowsPath:  %t\n", c.AppendWindowsPath)
			return nil
		},
	}

	var systemd, hosts, resolv, interop, winPath bool
	set := &cobra.Command{
		Use:   "set <distro>",
		Short: "Update wsl.conf switches (only flags given on the command line change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.executor.ReadConf(cmd.Context(), args[0])
			if cmd.Flags().Changed("systemd") {
				c.Systemd = systemd
			}
			if cmd.Flags().Changed("generate-hosts") {
				c.GenerateHosts = hosts
			}
			if cmd.Flags().Changed("generate-resolv-conf") {
				c.GenerateResolvConf = resolv
			}
			if cmd.Flags().Changed("interop") {
				c.InteropEnabled = interop
			}
			if cmd.Flags().Changed("append-windows-path") {
				c.AppendWindowsPath = winPath
			}
			return resultErr(cmd, a.executor.WriteConf(cmd.Context(), args[0], c))
		},
	}
	set.Flags().BoolVar(&systemd, "systemd", false, "enable systemd on boot")
	set.Flags().BoolVar(&hosts, "generate-hosts", true, "regenerate /etc/hosts")
	set.Flags().BoolVar(&resolv, "generate-resolv-conf", true, "regenerate /etc/resolv.conf")
	set.Flags().BoolVar(&interop, "interop", true, "allow launching host binaries")
	set.Flags().BoolVar(&winPath, "append-windows-path", true, "append the host PATH")

	conf.AddCommand(show, set)
	return conf
}

func newWslconfigCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wslconfig",
		Short: "Inspect or edit the host-wide .wslconfig",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the managed .wslconfig keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsl.GlobalConfigPath()
			if err != nil {
				return err
			}
			cfg := wsl.LoadGlobalConfig(path)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "memory:         %s\n", cfg.Memory)
			fmt.Fprintf(out, "processors:     %s\n", cfg.Processors)
			fmt.Fprintf(out, "networkingMode: %s\n", cfg.NetworkingMode)
			fmt.Fprintf(out, "swap:           %s\n", cfg.Swap)
			return nil
		},
	}

	var memory, processors, networking, swap string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update .wslconfig keys (takes effect after a shutdown)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsl.GlobalConfigPath()
			if err != nil {
				return err
			}
			cfg := wsl.LoadGlobalConfig(path)
			if cmd.Flags().Changed("memory") {
				cfg.Memory = memory
			}
			if cmd.Flags().Changed("processors") {
				cfg.Processors = processors
			}
			if cmd.Flags().Changed("networking-mode") {
				cfg.NetworkingMode = networking
			}
			if cmd.Flags().Changed("swap") {
				cfg.Swap = swap
			}
			return wsl.SaveGlobalConfig(path, cfg)
		},
	}
	set.Flags().StringVar(&memory, "memory", "", "VM memory limit, e.g. 8GB")
	set.Flags().StringVar(&processors, "processors", "", "VM processor count")
	set.Flags().StringVar(&networking, "networking-mode", "", "VM networking mode, e.g. mirrored")
	set.Flags().StringVar(&swap, "swap", "", "VM swap size, e.g. 2GB")

	root.AddCommand(show, set)
	return root
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll distro state and print the snapshot on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			disp := dashboard.NewDispatcher(func(ctx context.Context) {
				a.dash.Refresh(ctx)
			}, a.cfg.MinRefreshInterval)
			go disp.Run(ctx)
			disp.Request()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					disp.Request()
				case <-a.dash.Changed():
					printSnapshot(out, a.dash)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "polling interval")
	return cmd
}

// printSnapshot renders the cached distro table. It only reads the
// cache, so a change wakeup never triggers another tool command.
func printSnapshot(out io.Writer, dash *dashboard.Dashboard) {
	fmt.Fprintf(out, "--- %s busy=%t\n", time.Now().Format("15:04:05"), dash.Busy())
	for _, d := range dash.Distros() {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-30s %-10s v%s\n", marker, d.Name, d.Status, d.Version)
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin endpoint and refresh loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.AdminAddr
			}

			disp := dashboard.NewDispatcher(func(ctx context.Context) {
				a.dash.Refresh(ctx)
			}, a.cfg.MinRefreshInterval)
			go disp.Run(ctx)

			// Prime the snapshot and print the cached table whenever
			// state changes, mirroring what watch does interactively.
			disp.Request()
			out := cmd.OutOrStdout()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-a.dash.Changed():
						printSnapshot(out, a.dash)
					}
				}
			}()

			srv := dashboard.NewAdminServer(a.dash)
			err := srv.ListenAndServe(ctx, addr)
			a.dash.WaitIdle()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "admin endpoint address (defaults to the config file)")
	return cmd
}
