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

// MergeCmd represents the merge command
var MergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Flatten partitioned model or kernel tables into an optimization vector",
	Long: `
Reads <input>/000000 .. <input>/<NProc-1> and writes the inversion parameters,
parameter-major and partition-minor, to a raw little-endian float64 file.

seisfields merge --input OUTPUT_FILES/kernels --output optimize/g_new`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s        *session
			dir, out string
			v        []float64
		)
		if s, err = loadSession(cmd); err != nil {
			return
		}
		defer s.done()
		if dir, err = stringFlag(cmd, "input", ""); err != nil {
			return
		}
		if out, err = stringFlag(cmd, "output", ""); err != nil {
			return
		}
		fs, err := readfiles.ReadPartitions(s.ctx, dir, s.ip.Schema(), s.ip.NProc, s.ip.ParallelDegree)
		if err != nil {
			return
		}
		vz := vectorize.New(s.ip, nil)
		vz.Log = s.log
		if v, err = vz.Merge(fs); err != nil {
			return
		}
		if err = vectorize.WriteVector(out, v); err != nil {
			return
		}
		s.log.Info("merged partitions", "dir", dir, "file", out, "length", len(v))
		return
	},
}

// SplitCmd represents the split command
var SplitCmd = &cobra.Command{
	Use:   "split",
	Short: "Expand an optimization vector into partitioned model or kernel tables",
	Long: `
Splits the vector back into per-partition tables, filling the fields that are
not inverted from the mesh cache written by init.

seisfields split --input optimize/m_new --output DATA/model --kind model`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s       *session
			in, dir string
			v       []float64
		)
		if s, err = loadSession(cmd); err != nil {
			return
		}
		defer s.done()
		kind, err := kindFlag(cmd)
		if err != nil {
			return
		}
		if in, err = stringFlag(cmd, "input", s.ip.VectorPath()); err != nil {
			return
		}
		if dir, err = stringFlag(cmd, "output", ""); err != nil {
			return
		}
		if v, err = vectorize.ReadVector(in); err != nil {
			return
		}
		vz := vectorize.New(s.ip, s.meshCache())
		vz.Log = s.log
		fs, err := vz.Split(v)
		if err != nil {
			return
		}
		if err = readfiles.WritePartitions(s.ctx, dir, fs, s.ip.Schema(), kind, s.ip.ParallelDegree); err != nil {
			return
		}
		s.log.Info("split vector", "file", in, "dir", dir, "kind", kind, "partitions", s.ip.NProc)
		return
	},
}

func init() {
	rootCmd.AddCommand(MergeCmd)
	MergeCmd.Flags().StringP("input", "i", "", "directory of partition tables")
	MergeCmd.Flags().StringP("output", "o", "", "vector file to write")
	rootCmd.AddCommand(SplitCmd)
	SplitCmd.Flags().StringP("input", "i", "", "vector file to read (default Paths.Optimize/m_new)")
	SplitCmd.Flags().StringP("output", "o", "", "directory for partition tables")
	SplitCmd.Flags().StringP("kind", "k", "model", "table layout to write: model or kernel")
}
