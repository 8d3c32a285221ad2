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
	"github.com/spf13/cobra"

	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/vectorize"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Populate the mesh cache and write the initial model vector",
	Long: `
Reads the partitioned initial model, stores every field that is not inverted in
the mesh cache under Paths.Global and writes the merged inversion parameters to
Paths.Optimize/m_new. Existing cache and vector are left untouched.

seisfields init --model DATA/model_init`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s   *session
			dir string
		)
		if s, err = loadSession(cmd); err != nil {
			return
		}
		defer s.done()
		if dir, err = stringFlag(cmd, "model", s.ip.Paths.ModelInit); err != nil {
			return
		}
		fs, err := readfiles.ReadPartitions(s.ctx, dir, s.ip.Schema(), s.ip.NProc, s.ip.ParallelDegree)
		if err != nil {
			return
		}
		return vectorize.InitializeIO(s.ip, fs, s.meshCache(), s.ip.VectorPath(), s.log)
	},
}

func init() {
	rootCmd.AddCommand(InitCmd)
	InitCmd.Flags().StringP("model", "m", "", "directory of initial model partitions (default Paths.ModelInit)")
}
