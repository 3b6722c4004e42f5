package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wsldash/internal/autostart"
	"wsldash/internal/config"
	"wsldash/internal/dashboard"
	"wsldash/internal/launcher"
	"wsldash/internal/wsl"
)

// app holds the wired-up components shared by every subcommand.
type app struct {
	cfg      appConfig
	executor *wsl.Executor
	dash     *dashboard.Dashboard
	auto     *autostart.Writer
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "wsldash",
		Short:         "Manage virtualized Linux environments from the host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			return a.wire(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to wsldash.toml")

	root.AddCommand(
		newVersionCmd(),
		newListCmd(a),
		newAvailableCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		newRestartCmd(a),
		newShutdownCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newMoveCmd(a),
		newInfoCmd(a),
		newAutostartCmd(a),
		newConfCmd(a),
		newWslconfigCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) wire(cfg appConfig) error {
	a.cfg = cfg
	a.executor = wsl.NewExecutor(wsl.ExecutorConfig{
		Binary:       cfg.Binary,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	instancesPath := cfg.InstancesPath
	if instancesPath == "" {
		path, err := config.DefaultStorePath()
		if err != nil {
			return err
		}
		instancesPath = path
	}
	startupDir := cfg.StartupDir
	if startupDir == "" {
		dir, err := autostart.DefaultStartupDir()
		if err != nil {
			return err
		}
		startupDir = dir
	}
	a.auto = autostart.NewWriter(startupDir)

	a.dash = dashboard.New(dashboard.Config{}, dashboard.Deps{
		Runner:    a.executor,
		Store:     config.NewStore(instancesPath),
		Launcher:  launcher.NewRegistryLookup(),
		Autostart: a.auto,
		Packages:  launcher.NewAppxRemover(),
	})
	return nil
}

// resultErr folds an operation result into the CLI error contract: the
// decoded output goes to stdout, a failure becomes the exit error.
func resultErr(cmd *cobra.Command, res wsl.Result[string]) error {
	if res.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wsldash version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered distros and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if res := a.dash.Refresh(cmd.Context()); !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			for _, d := range a.dash.Distros() {
				marker := " "
				if d.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %-10s v%s\n", marker, d.Name, d.Status, d.Version)
			}
			return nil
		},
	}
}

func newAvailableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List distros available to install",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.dash.ListAvailable(cmd.Context())
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			for _, d := range res.Data {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", d.Name, d.FriendlyName)
			}
			return nil
		},
	}
}

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start <distro>",
		Short: "Start a distro and hold it open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.dash.Start(cmd.Context(), args[0])
			a.dash.WaitIdle()
			return resultErr(cmd, res)
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <distro>",
		Short: "Terminate a distro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.dash.Stop(cmd.Context(), args[0])
			a.dash.WaitIdle()
			return resultErr(cmd, res)
		},
	}
}

func newRestartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <distro>",
		Short: "Stop and start a distro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.dash.Restart(cmd.Context(), args[0])
			a.dash.WaitIdle()
			return resultErr(cmd, res)
		},
	}
}

func newShutdownCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Shut down every distro and the shared VM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return resultErr(cmd, a.dash.ShutdownAll(cmd.Context()))
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <distro>",
		Short: "Unregister a distro and scrub its settings (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("deleting %q is irreversible, re-run with --yes", args[0])
			}
			res := a.dash.Delete(cmd.Context(), args[0])
			a.dash.WaitIdle()
			return resultErr(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <distro> <archive.tar>",
		Short: "Export a distro's filesystem to a tar archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.dash.Export(cmd.Context(), args[0], args[1], func(frag string) {
				fmt.Fprint(cmd.OutOrStdout(), frag)
			})
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <distro> <install-location> <archive.tar>",
		Short: "Register a new distro from a tar archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resultErr(cmd, a.dash.Import(cmd.Context(), args[0], args[1], args[2]))
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <distro> <new-location>",
		Short: "Relocate a distro's disk image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resultErr(cmd, a.dash.Move(cmd.Context(), args[0], args[1]))
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <distro>",
		Short: "Show a distro's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.dash.Refresh(cmd.Context())
			info := a.dash.Info(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:             %s\n", info.Name)
			fmt.Fprintf(out, "Status:           %s\n", info.Status)
			fmt.Fprintf(out, "Version:          %s\n", info.Version)
			fmt.Fprintf(out, "Install location: %s\n", info.InstallLocation)
			fmt.Fprintf(out, "Disk image:       %s\n", info.VhdxPath)
			fmt.Fprintf(out, "Image size:       %s\n", info.VhdxSize)
			fmt.Fprintf(out, "Used space:       %s\n", info.ActualUsed)
			fmt.Fprintf(out, "Autostart:        %t\n", info.Autostart)
			fmt.Fprintf(out, "Default user:     %s\n", info.DefaultUser)
			return nil
		},
	}
}
