// Command threadctl reads and writes task comment threads through the API.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskthread/internal/client"
	"taskthread/internal/config"
	"taskthread/internal/version"
)

// app carries the resolved configuration shared by every command
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	// Priority: flags > THREADCTL_* env > defaults
	a.v.SetEnvPrefix("threadctl")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault("server", "http://localhost:8080")
	a.v.SetDefault("log-level", "error")

	root := &cobra.Command{
		Use:           "threadctl",
		Short:         "threadctl - browse and edit task comment threads",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.v.GetBool("no-color") {
				color.NoColor = true
			}
			logger, err := config.InitLogger("development", a.v.GetString("log-level"))
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "", "API base URL (default http://localhost:8080, $THREADCTL_SERVER)")
	flags.String("token", "", "Bearer token ($THREADCTL_TOKEN)")
	flags.Bool("json", false, "Output in JSON format")
	flags.Bool("no-color", false, "Disable coloured output")
	flags.String("log-level", "", "Log level for request tracing (default error)")
	for _, name := range []string{"server", "token", "json", "no-color", "log-level"} {
		a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newCommentsCmd(a),
		newActivityCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString("server"),
		client.WithToken(a.v.GetString("token")),
		client.WithLogger(a.logger),
	)
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}
