package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
	"github.com/Entity-Assist/EntityAssist-sub001/config"
)

const version = "0.3.0"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	viper  *viper.Viper
	config entityassist.Config
	output string
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{viper: v}

	root := &cobra.Command{
		Use:   "entityassist",
		Short: "Inspect and check an entityassist data-access setup",
		Long: fmt.Sprintf(`entityassist (v%s)

Reads its connection settings from entityassist.yaml, .env files,
ENTITYASSIST_* environment variables and flags, in increasing order of
precedence.`, version),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	cobra.OnInitialize(config.LoadEnvFiles)

	fs := root.PersistentFlags()
	fs.String("config-dir", ".", "directory searched for entityassist.yaml")
	fs.StringVarP(&a.output, "output", "o", "text", "output format (text, yaml)")

	d := config.Defaults()
	fs.String(config.FlagName(config.KeyDriver), d.Driver, "database driver (sqlite, mysql, postgres, pq, sqlserver)")
	fs.String(config.FlagName(config.KeyURL), "", "full connection URL, overrides host/port/database")
	fs.String(config.FlagName(config.KeyHost), "", "database host")
	fs.Int(config.FlagName(config.KeyPort), 0, "database port")
	fs.String(config.FlagName(config.KeyDatabase), d.Database, "database name or sqlite file")
	fs.String(config.FlagName(config.KeyUsername), "", "database user")
	fs.String(config.FlagName(config.KeyPassword), "", "database password")
	fs.String(config.FlagName(config.KeyLogLevel), d.LogLevel, "gorm log level (silent, error, warn, info)")
	fs.Bool(config.FlagName(config.KeyDetached), false, "write through literal statements instead of gorm")
	fs.Bool(config.FlagName(config.KeySeparateRawPool), false, "give detached statements their own pool")
	fs.Bool(config.FlagName(config.KeyQueryDebug), false, "log every detached statement")

	root.AddCommand(newVersionCmd(), newConfigCmd(a), newPingCmd(a), newFlagsCmd(a), newIDMapCmd(a))
	return root
}

// setup binds the persistent flags to viper and loads the configuration.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr == nil {
			bindErr = a.viper.BindPFlag(keyFor(f.Name), f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	dir, _ := cmd.Flags().GetString("config-dir")
	cfg, err := config.Load(a.viper, dir)
	if err != nil {
		return err
	}
	a.config = cfg

	switch a.output {
	case "text", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}

// keyFor maps a flag name back to its config key.
func keyFor(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// render writes v as YAML, or hands w to text when the output is text.
func (a *app) render(w io.Writer, v any, text func(io.Writer) error) error {
	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version number",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "entityassist v%s\n", version)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML, password masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := config.Marshal(a.config)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
