/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/seisfields/InputParameters"
	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seisfields",
	Short: "Partitioned model and kernel field tools for seismic inversion",
	Long: `
Moves partitioned SPECFEM2D model and kernel tables in and out of the flat
vector used by the optimizer, and post-processes kernels between iterations:

seisfields init   --config inversion.yaml
seisfields merge  --input OUTPUT_FILES/kernels --output optimize/g_new
seisfields split  --input optimize/m_new --output DATA/model
seisfields smooth --input OUTPUT_FILES/kernels --span 5000
seisfields clip   --input OUTPUT_FILES/kernels --thresh 0.9`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch p := viper.GetString("profile"); p {
		case "":
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
		default:
			return &types.ValueError{Name: "profile", Value: p, Msg: "must be cpu or mem"}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
			profiler = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "inversion config file (default is $HOME/.seisfields.yaml)")
	rootCmd.PersistentFlags().String("logLevel", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("profile", "", "write a cpu or mem profile to the working directory")
	rootCmd.PersistentFlags().IntP("parallelDegree", "p", 0, "partitions processed concurrently (default: config, then number of CPUs)")
	for _, name := range []string{"logLevel", "profile", "parallelDegree"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".seisfields" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".seisfields")
	}
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SEISFIELDS")
	viper.AutomaticEnv() // read in environment variables that match
	// A missing file is reported by loadSession, which is the first place it matters
	_ = viper.ReadInConfig()
}

// session carries what every subcommand needs: the validated inversion
// parameters, a logger and the cancellation context.
type session struct {
	ip  *InputParameters.InversionParameters
	log *utils.Logger
	ctx context.Context
}

func loadSession(cmd *cobra.Command) (s *session, err error) {
	var (
		data []byte
		file = viper.ConfigFileUsed()
	)
	if file == "" {
		return nil, fmt.Errorf("no configuration file: use --config or create $HOME/.seisfields.yaml")
	}
	if data, err = os.ReadFile(file); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	s = &session{
		ip:  InputParameters.NewInversionParameters(),
		log: utils.NewLogger(cmd.ErrOrStderr(), utils.ParseLevel(viper.GetString("logLevel"))),
		ctx: cmd.Context(),
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if err = s.ip.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	if n := viper.GetInt("parallelDegree"); n > 0 {
		s.ip.ParallelDegree = n
	}
	if err = s.ip.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	s.log.Debug("loaded configuration", "file", file, "nproc", s.ip.NProc,
		"inversion", s.ip.InversionParameters, "blas", utils.BLASImplementation)
	if s.log.Enabled(s.ctx, slog.LevelDebug) {
		s.ip.Print()
	}
	return
}

// done logs memory statistics at the end of a command.
func (s *session) done() {
	s.log.Debug("finished", "memory", utils.GetMemUsage())
}

func (s *session) meshCache() *readfiles.MeshCache {
	return readfiles.NewMeshCache(s.ip.Paths.Global, s.ip.CompressCache)
}

// kindFlag reads the --kind flag of cmd.
func kindFlag(cmd *cobra.Command) (types.Kind, error) {
	k, _ := cmd.Flags().GetString("kind")
	return types.ParseKind(k)
}

// stringFlag returns the flag value, or def when the flag was left empty.
func stringFlag(cmd *cobra.Command, name, def string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		v = def
	}
	if v == "" {
		return "", &types.ValueError{Name: name, Value: v, Msg: "must be given on the command line or in the config"}
	}
	return v, nil
}
