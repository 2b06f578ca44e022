package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldsn-cm/ldsn/app"
	"github.com/ldsn-cm/ldsn/config"
	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/infra/logger"
)

var (
	reportDisease   string
	reportLocation  string
	reportReporter  string
	reportMortality int
	reportSpecies   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit a field report through the triage pipeline",
	RunE:  submitReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDisease, "disease", "", "disease name or unique prefix")
	reportCmd.Flags().StringVar(&reportLocation, "location", "", "reporting location")
	reportCmd.Flags().StringVar(&reportReporter, "reporter", "", "reporter identifier")
	reportCmd.Flags().IntVar(&reportMortality, "mortality", 0, "animal deaths observed")
	reportCmd.Flags().StringVar(&reportSpecies, "species", "", "affected species")
	rootCmd.AddCommand(reportCmd)
}

func submitReport(cmd *cobra.Command, args []string) error {
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
	logg := logger.New("report-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	alert, err := svc.Triage.SubmitReport(ctx, model.FieldReport{
		Disease:    reportDisease,
		Location:   reportLocation,
		ReporterID: reportReporter,
		Mortality:  reportMortality,
		Species:    reportSpecies,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	logg.Infof("alert %s emitted with priority %s", alert.ID, alert.Priority)
	return nil
}
