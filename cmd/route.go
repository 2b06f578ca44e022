package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ldsn-cm/ldsn/app"
	"github.com/ldsn-cm/ldsn/config"
	"github.com/ldsn-cm/ldsn/infra/logger"
)

var (
	routeStart string
	routeEnd   string
	routeRainy bool
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Compute the safe route between two locations",
	RunE:  computeRoute,
}

func init() {
	routeCmd.Flags().StringVar(&routeStart, "from", "", "start location")
	routeCmd.Flags().StringVar(&routeEnd, "to", "", "end location")
	routeCmd.Flags().BoolVar(&routeRainy, "rainy", false, "apply rainy season weights")
	rootCmd.AddCommand(routeCmd)
}

func computeRoute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("route-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	r, err := svc.Triage.RouteBetween(ctx, routeStart, routeEnd, routeRainy)
	if err != nil {
		return err
	}
	logg.Infof("route %s (%.1f km effective, risk %.2f)",
		strings.Join(r.Path, " -> "), r.TotalWeight, r.RiskScore)
	return nil
}
