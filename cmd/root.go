package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	command    string
	verbose    bool
	debugChain bool

	exitCode = core.ExitSuccess
)

func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "A small interactive shell",
	Long: `An interactive shell with pipelines, redirection, && and || chaining
and background jobs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		var traceOut io.Writer = io.Discard
		if verbose {
			traceOut = cmd.ErrOrStderr()
		}
		logger := log.New(traceOut, "[pipesh] ", log.LstdFlags)

		s, err := core.NewShell(configuration, core.DefaultStdio(), logger)
		if err != nil {
			return err
		}
		s.DebugChain = debugChain
		s.Start()
		defer s.Close()

		if cmd.Flags().Changed("command") {
			exitCode, err = s.RunCommand(command)
		} else {
			exitCode, err = s.RunInteractive()
		}
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()

	var fatal *core.FatalError
	if errors.As(err, &fatal) {
		// Cobra has already printed the error.
		os.Exit(core.ExitFatal)
	}
	cobra.CheckErr(err)

	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory, the built-in defaults are used if empty")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single line and exit with its status")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "trace job and process events to stderr")
	rootCmd.Flags().BoolVar(&debugChain, "debug-chain", false, "print every parsed chain before running it")
}
