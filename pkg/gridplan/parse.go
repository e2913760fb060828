package gridplan

import (
	"flag"
	"fmt"
)

// Parse parses command line arguments and returns the command to execute
// and the application configuration.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("gridplan", flag.ContinueOnError)

	var (
		port     = flagSet.String("port", "3001", "Server port")
		logLevel = flagSet.String("log-level", "info", "Log level: debug, info, warn, error")
		logPath  = flagSet.String("log-path", "", "Append logs to this file instead of stdout")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: gridplan [flags] <command>

Commands:
  run       Start the gridplan server

Examples:
  gridplan run
  gridplan -port=8090 run
  gridplan -log-level=debug run`)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run", remainingArgs[0])
	}

	config := &Config{
		ServerPort: getEnv("PORT", *port),
		LogLevel:   *logLevel,
		LogPath:    *logPath,

		AnaplanAuthURL: getEnv("ANAPLAN_AUTH_URL", ""),
		AnaplanBaseURL: getEnv("ANAPLAN_API_BASE", ""),
	}

	return cmd, config, nil
}
