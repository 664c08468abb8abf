package cmd

import (
	"context"
	"encoding/json"
	"os"

	"example.com/powermon/config"
	"example.com/powermon/internal/database"
	"example.com/powermon/internal/repository"
	"example.com/powermon/internal/service"

	"github.com/spf13/cobra"
)

var eventFile string

// exportEventsCmd represents the export-events command
var exportEventsCmd = &cobra.Command{
	Use:   "export-events",
	Short: "Export the event log",
	Long: `Exports the full power-state event log as JSON, ordered by device
and start time. Writes to stdout unless --file is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		runExportEvents()
	},
}

// importEventsCmd represents the import-events command
var importEventsCmd = &cobra.Command{
	Use:   "import-events",
	Short: "Import an event log",
	Long: `Imports a previously exported event log. The set is validated
against the interval invariants (ordering, contiguity, alternation, one
open interval per device) and rejected wholesale on any violation. Events
replace the stored log of every device present in the file.`,
	Run: func(cmd *cobra.Command, args []string) {
		runImportEvents()
	},
}

func init() {
	rootCmd.AddCommand(exportEventsCmd)
	rootCmd.AddCommand(importEventsCmd)

	exportEventsCmd.Flags().StringVar(&eventFile, "file", "", "output file (default stdout)")
	importEventsCmd.Flags().StringVar(&eventFile, "file", "", "input file (required)")
}

func newEventService() service.Service {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	svc, err := service.NewService(service.ServiceConfig{
		Repository: repository.NewRepository(db),
		Logger:     log,
	})
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	return svc
}

func runExportEvents() {
	svc := newEventService()

	events, err := svc.ExportEvents(context.Background())
	if err != nil {
		log.Fatalf("Failed to export events: %v", err)
	}

	out := os.Stdout
	if eventFile != "" {
		f, err := os.Create(eventFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		log.Fatalf("Failed to write events: %v", err)
	}

	log.Infof("Exported %d events", len(events))
}

func runImportEvents() {
	if eventFile == "" {
		log.Fatal("--file is required")
	}

	f, err := os.Open(eventFile)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	var events []service.ExportedEvent
	if err := json.NewDecoder(f).Decode(&events); err != nil {
		log.Fatalf("Failed to parse events: %v", err)
	}

	svc := newEventService()
	if err := svc.ImportEvents(context.Background(), events); err != nil {
		log.Fatalf("Failed to import events: %v", err)
	}

	log.Infof("Imported %d events", len(events))
}
