package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tidbyt.dev/gtfsdb"
	"tidbyt.dev/gtfsdb/storage"
)

var rootCmd = &cobra.Command{
	Use:          "gtfsdb",
	Short:        "GTFS/GTFS-Flex loader, validator and exporter",
	Long:         "Loads a GTFS static (or GTFS-Flex) zip archive into a relational backend, validates it, and exports it back out.",
	SilenceUsage: true,
}

var (
	dbPath string
	pgConn string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "sqlite", "", "gtfsdb.sqlite3", "path to the SQLite database file")
	rootCmd.PersistentFlags().StringVarP(&pgConn, "postgres", "", "", "Postgres connection string (overrides --sqlite)")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func openBackend() (storage.Backend, error) {
	if pgConn != "" {
		return storage.NewPostgres(pgConn)
	}
	return storage.NewSQLite(storage.SQLiteConfig{OnDisk: true, Filename: dbPath})
}

var loadCmd = &cobra.Command{
	Use:   "load <archive.zip>",
	Short: "Load a GTFS archive into a fresh namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := gtfsdb.NewService(backend)
		result, err := svc.LoadFile(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("loaded %s into namespace %s (checksum %08x)\n", args[0], result.Namespace, result.Checksum)
		for table, n := range result.Counts {
			fmt.Printf("  %-24s %d rows\n", table, n)
		}
		if n := result.Errors.Len(); n > 0 {
			fmt.Printf("%d issues recorded during load (see %s_errors)\n", n, result.Namespace)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <namespace>",
	Short: "Run referential, pattern, calendar and semantic checks against a loaded namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := gtfsdb.NewService(backend)
		result, err := svc.Validate(args[0])
		if err != nil {
			return err
		}

		counts := result.Errors.CountBySeverity()
		fmt.Printf("namespace %s: %d issues\n", args[0], result.Errors.Len())
		for sev, n := range counts {
			fmt.Printf("  %-8s %d\n", sev, n)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <namespace> <out.zip>",
	Short: "Export a namespace back into a GTFS zip archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := gtfsdb.NewService(backend)
		data, err := svc.Export(args[0])
		if err != nil {
			return err
		}
		return os.WriteFile(args[1], data, 0644)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <namespace>",
	Short: "Copy a namespace verbatim into a fresh namespace for editing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := gtfsdb.NewService(backend)
		target, err := svc.Snapshot(args[0])
		if err != nil {
			return err
		}
		fmt.Println(target)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <namespace>",
	Short: "Drop every table belonging to a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := gtfsdb.NewService(backend)
		return svc.Delete(args[0])
	},
}
