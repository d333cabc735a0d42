// Package gpuctl implements the operator CLI for a running gpud daemon.
package gpuctl

import (
	"github.com/spf13/cobra"
)

// Main parses args and runs the command tree.
func Main(args []string) error {
	root := buildRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

// buildRootCmd constructs the Cobra command tree wired to a daemon client.
func buildRootCmd() *cobra.Command {
	var addr string
	root := &cobra.Command{
		Use:           "gpuctl",
		Short:         "Operate the gpud GPU orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", envOr("GPUD_ADDR", "http://127.0.0.1:8090"), "Base URL of the gpud daemon")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the aggregated orchestrator status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(addr).status(cmd.OutOrStdout())
		},
	}
	root.AddCommand(statusCmd)

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Ensure a workload can run",
	}
	ensureCmd.AddCommand(
		&cobra.Command{
			Use:   "inference",
			Short: "Ensure some backend can serve segmentation inference",
			RunE: func(cmd *cobra.Command, args []string) error {
				return newClient(addr).ensureInference(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "training",
			Short: "Acquire the GPU for a training job",
			RunE: func(cmd *cobra.Command, args []string) error {
				return newClient(addr).ensureTraining(cmd.OutOrStdout())
			},
		},
	)
	root.AddCommand(ensureCmd)

	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Release a workload's GPU ownership",
	}
	releaseCmd.AddCommand(&cobra.Command{
		Use:   "training",
		Short: "Release the GPU after a training run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(addr).releaseTraining(cmd.OutOrStdout())
		},
	})
	root.AddCommand(releaseCmd)

	keepaliveCmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Reset the idle shutdown timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(addr).keepalive(cmd.OutOrStdout())
		},
	}
	root.AddCommand(keepaliveCmd)

	return root
}
