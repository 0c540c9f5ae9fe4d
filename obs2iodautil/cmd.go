/*
Copyright © 2024 the obs2ioda authors.
This file is part of obs2ioda.

obs2ioda is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

obs2ioda is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with obs2ioda.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package obs2iodautil implements the obs2ioda command-line interface.
package obs2iodautil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/NCAR/obs2ioda"
	"github.com/NCAR/obs2ioda/internal/hash"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands.
var Log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to obs2ioda.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "schema",
			usage: `
              schema specifies the location of a YAML schema document
              declaring the canonical names and their aliases. If empty,
              the built-in IODA naming conventions are used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level specifies the minimum severity of log messages:
              one of debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "metrics_file",
			usage: `
              metrics_file specifies a file to write the resolution and
              conversion counters to, in the Prometheus text format, when
              the command finishes. If empty, no metrics are written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "output_dir",
			usage: `
              output_dir specifies the directory converted files are
              written to. Output files keep the names of their inputs.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), watchCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers specifies the number of files converted at once.`,
			shorthand:  "w",
			defaultVal: runtime.GOMAXPROCS(0),
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), watchCmd.Flags()},
		},
		{
			name: "strict",
			usage: `
              strict specifies whether a file that uses a name not
              declared in the schema fails to convert.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), watchCmd.Flags()},
		},
		{
			name: "inputs",
			usage: `
              inputs specifies glob patterns of the files to convert,
              in addition to any given as arguments. Patterns may contain
              '**' to match any number of directories.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), watchCmd.Flags()},
		},
		{
			name: "kind",
			usage: `
              kind specifies the kind of the names to resolve: attribute,
              group, dimension or variable.`,
			shorthand:  "k",
			defaultVal: "variable",
			flagsets:   []*pflag.FlagSet{resolveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OBS2IODA")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(convertCmd)
	Root.AddCommand(resolveCmd)
	Root.AddCommand(schemaCmd)
	Root.AddCommand(watchCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and applies the logging configuration.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("obs2ioda: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("obs2ioda: invalid log_level: %v", err)
	}
	Log.SetLevel(level)
	return nil
}

// inputs returns the input patterns from the arguments and configuration.
func inputs(args []string) ([]string, error) {
	cfg, err := cast.ToStringSliceE(Cfg.Get("inputs"))
	if err != nil {
		return nil, fmt.Errorf("obs2ioda: reading 'inputs': %v", err)
	}
	patterns := append(append([]string(nil), args...), cfg...)
	for i, p := range patterns {
		patterns[i] = os.ExpandEnv(p)
	}
	return patterns, nil
}

// interruptible returns a context that is cancelled on an interrupt.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "obs2ioda",
	Short: "Convert observation files to the IODA v3 layout.",
	Long: `obs2ioda rewrites IODA observation files that use the naming conventions of
earlier versions (for example brightness_temperature_4@ObsValue) as IODA v3
files with canonical names (ObsValue/brightnessTemperature, with a Channel
dimension). Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'OBS2IODA_var' where 'var'
is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return writeMetrics(os.ExpandEnv(Cfg.GetString("metrics_file")))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of obs2ioda.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "obs2ioda v%s\n", obs2ioda.Version)
	},
	DisableAutoGenTag: true,
}

var convertCmd = &cobra.Command{
	Use:   "convert [inputs...]",
	Short: "Convert files to IODA v3.",
	Long: `convert rewrites each input file as an IODA v3 file in output_dir. Inputs are
glob patterns; files that fail to convert are reported and the remaining files
are still converted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, err := inputs(args)
		if err != nil {
			return err
		}
		ctx, cancel := interruptible(cmd)
		defer cancel()
		reports, err := Convert(ctx,
			patterns,
			os.ExpandEnv(Cfg.GetString("output_dir")),
			os.ExpandEnv(Cfg.GetString("schema")),
			Cfg.GetInt("workers"),
			Cfg.GetBool("strict"),
		)
		for _, r := range reports {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d variables, %d channels, schema %s)\n",
				r.Input, r.Output, len(r.Variables), r.Channels, hash.Short(r.Fingerprint))
		}
		return err
	},
	DisableAutoGenTag: true,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Print the canonical forms of names.",
	Long: `resolve prints, for each name, its canonical name, the group encoded in it,
its channel number, whether it was found in the schema or created, and the rule
that matched it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := obs2ioda.ParseKind(Cfg.GetString("kind"))
		if err != nil {
			return fmt.Errorf("obs2ioda: %v (kinds are %s)", err, kindNames())
		}
		s, err := loadSchema(os.ExpandEnv(Cfg.GetString("schema")))
		if err != nil {
			return err
		}
		return Resolve(cmd.OutOrStdout(), s, kind, args)
	},
	DisableAutoGenTag: true,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema.",
	Long: `schema prints the loaded schema document, with the canonical name of each
entry first, followed by its fingerprint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema(os.ExpandEnv(Cfg.GetString("schema")))
		if err != nil {
			return err
		}
		return PrintSchema(cmd.OutOrStdout(), s)
	},
	DisableAutoGenTag: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Convert files as they appear.",
	Long: `watch converts each netCDF file (*.nc, *.nc4) written to DIR until it is
interrupted. If inputs are given, only files matching one of the patterns are
converted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, err := inputs(nil)
		if err != nil {
			return err
		}
		ctx, cancel := interruptible(cmd)
		defer cancel()
		return Watch(ctx,
			os.ExpandEnv(args[0]),
			patterns,
			os.ExpandEnv(Cfg.GetString("output_dir")),
			os.ExpandEnv(Cfg.GetString("schema")),
			Cfg.GetInt("workers"),
			Cfg.GetBool("strict"),
			nil,
		)
	},
	DisableAutoGenTag: true,
}

// kindNames lists the kinds for usage messages.
func kindNames() string {
	var s []string
	for _, k := range obs2ioda.Kinds {
		s = append(s, strings.ToLower(k.String()))
	}
	return strings.Join(s, ", ")
}
