package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/patientportal/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-l string   log format, json or console
//	-u string   uploads directory for record PDFs
//	-m string   maintenance flag file
//	-e string   demo account email
//
// Arguments are first filtered with flagx.FilterArgs so flags meant for other
// parsers (such as -c) do not cause errors here.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l", "-u", "-m", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (json|console)")
	fs.StringVar(&config.UploadsDir, "u", config.UploadsDir, "uploads directory")
	fs.StringVar(&config.MaintenanceFile, "m", config.MaintenanceFile, "maintenance flag file")
	fs.StringVar(&config.DemoEmail, "e", config.DemoEmail, "demo account email")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
