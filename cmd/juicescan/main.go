// Command juicescan serves the Juicebox treasury dashboard and exposes its
// read and transaction paths on the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/app"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/config"
	"github.com/R3E-Network/juicescan/internal/project"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	envFile string
	cfg     *config.Config

	// project flags
	rulesetFlag string
	chainFlag   uint64

	// pay flags
	amountFlag  string
	accountFlag string
	waitFlag    bool

	// launch flags
	ownerFlag string
)

var rootCmd = &cobra.Command{
	Use:   "juicescan",
	Short: "Juicebox project treasury dashboard",
	Long: `juicescan reads Juicebox project state across the configured EVM
networks and renders it as a dashboard.

Required environment: WALLETCONNECT_PROJECT_ID, INFURA_ID, SUBGRAPH_URL.
CHAINS_FILE points at the network registry with deployed contract addresses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		loaded, err := config.Load(envFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the configured networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworks,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Refresh and list indexed projects",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var projectCmd = &cobra.Command{
	Use:   "project [project-id]",
	Short: "Load a project's treasury state",
	Long: `Loads every field of a project's dashboard view and prints it as JSON.

Example:
  juicescan project 12 --ruleset next --chain 11155111`,
	Args: cobra.ExactArgs(1),
	RunE: runProject,
}

var payCmd = &cobra.Command{
	Use:   "pay [project-id]",
	Short: "Build or send a payment to a project",
	Long: `Builds a payment to the project's primary native-token terminal.

Without --account the local signer (SIGNER_PRIVATE_KEY) pays and the
transaction is sent; with --account the unsigned request is printed for an
external wallet.`,
	Args: cobra.ExactArgs(1),
	RunE: runPay,
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Build or send the demo project launch",
	Args:  cobra.NoArgs,
	RunE:  runLaunch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")

	projectCmd.Flags().StringVar(&rulesetFlag, "ruleset", string(project.SelectionCurrent), "ruleset to show: current or next")
	for _, cmd := range []*cobra.Command{projectCmd, payCmd, launchCmd} {
		cmd.Flags().Uint64Var(&chainFlag, "chain", 0, "chain id (default: the active network)")
	}

	payCmd.Flags().StringVar(&amountFlag, "amount", "", "amount of native token to pay")
	payCmd.Flags().StringVar(&accountFlag, "account", "", "paying account (default: the local signer)")
	payCmd.Flags().BoolVar(&waitFlag, "wait", false, "wait for a sent transaction to be mined")
	_ = payCmd.MarkFlagRequired("amount")

	launchCmd.Flags().StringVar(&ownerFlag, "owner", "", "project owner (default: the local signer)")
	launchCmd.Flags().BoolVar(&waitFlag, "wait", false, "wait for a sent transaction to be mined")

	rootCmd.AddCommand(serveCmd, networksCmd, projectsCmd, projectCmd, payCmd, launchCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.New(cfg, version)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	application.Logger().WithField("version", version).Info("starting juicescan")
	return application.Run(ctx)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	networks, err := chain.LoadNetworks(cfg.ChainsFile)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), networks.Networks)
}

func runProjects(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		if err := a.Index.Refresh(ctx); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), a.Index.Snapshot())
	})
}

func runProject(cmd *cobra.Command, args []string) error {
	id, err := parseProjectID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		view, err := a.Aggregator.Load(ctx, project.Request{
			ChainID:   chainFlag,
			ProjectID: id,
			Selection: project.ParseSelection(rulesetFlag),
		}, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			State project.State `json:"state"`
			Name  string        `json:"name"`
			*project.View
		}{view.State(), view.Name(), view})
	})
}

func runPay(cmd *cobra.Command, args []string) error {
	id, err := parseProjectID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		res, err := a.Actions.Local().Pay(ctx, id, amountFlag, accountFlag, chainFlag)
		if err != nil {
			return err
		}
		return finish(ctx, cmd.OutOrStdout(), a, res)
	})
}

func runLaunch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		res, err := a.Actions.Local().Launch(ctx, ownerFlag, chainFlag)
		if err != nil {
			return err
		}
		return finish(ctx, cmd.OutOrStdout(), a, res)
	})
}

// finish prints res, first waiting for a sent transaction when --wait is set.
func finish(ctx context.Context, out io.Writer, a *app.Application, res actions.Result) error {
	if waitFlag && res.Submitted != nil && a.Submitter != nil {
		status, err := a.Submitter.Wait(ctx, res.Submitted.Hash)
		if err != nil {
			return err
		}
		res.Submitted = &status
		if status.Status == actions.StatusFailed {
			_ = printJSON(out, res)
			return fmt.Errorf("transaction %s failed: %s", status.Hash, status.Error)
		}
	}
	return printJSON(out, res)
}

// withApp runs fn against a wired application that is released afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	application, err := app.New(cfg, version)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, application)
}

func parseProjectID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid project id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
