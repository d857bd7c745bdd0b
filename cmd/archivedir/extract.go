package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manu4linux/archivedir/internal/backup"
	"github.com/manu4linux/archivedir/internal/logger"
)

var (
	extractFrom       string
	extractTo         string
	extractPassword   string
	extractSalt       string
	extractIterations int
)

var extractCmd = &cobra.Command{
	Use:   "extract [archive]",
	Short: "Restore an archive from the destination",
	Long: `Restore an archive into a local directory. The archive may be named
by its base name (docs.tar.gz) or by any of its parts
(docs.tar.gz.part_002); all parts are located automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractFrom, "from", "", "source storage: dir, s3://bucket/prefix, gdrive://path or onedrive://path")
	extractCmd.Flags().StringVarP(&extractTo, "to", "t", ".", "directory to restore into")
	extractCmd.Flags().StringVarP(&extractPassword, "password", "p", "", "decryption password")
	extractCmd.Flags().StringVar(&extractSalt, "salt", "", "salt override when the metadata file is lost")
	extractCmd.Flags().IntVar(&extractIterations, "iterations", 0, "PBKDF2 iteration count override")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	if extractFrom != "" {
		cfg.Backup.Destination = extractFrom
	}
	if extractPassword != "" {
		cfg.Encryption.Password = extractPassword
	}
	if extractSalt != "" {
		cfg.Encryption.Salt = extractSalt
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Encryption.Iterations = extractIterations
	}
	if cfg.Backup.Destination == "" {
		return fmt.Errorf("no source storage: set --from or backup.destination in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := backup.New(cfg, log, nil).Extract(ctx, args[0], extractTo); err != nil {
		return err
	}

	fmt.Printf("Extracted %s into %s\n", args[0], extractTo)
	return nil
}
