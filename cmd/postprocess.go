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

	"github.com/notargets/seisfields/postprocess"
)

// SmoothCmd represents the smooth command
var SmoothCmd = &cobra.Command{
	Use:   "smooth",
	Short: "Gaussian smooth the inversion parameters of every partition table",
	Long: `
Smooths each partition table in place. The unsmoothed table is kept as
<input>/_nosmooth/<partition>. A span of zero leaves the tables alone.

seisfields smooth --input OUTPUT_FILES/kernels --span 5000`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s   *session
			dir string
		)
		if s, err = loadSession(cmd); err != nil {
			return
		}
		defer s.done()
		kind, err := kindFlag(cmd)
		if err != nil {
			return
		}
		if dir, err = stringFlag(cmd, "input", ""); err != nil {
			return
		}
		span := s.ip.Smooth.Span
		if cmd.Flags().Changed("span") {
			span, _ = cmd.Flags().GetFloat64("span")
		}
		sm := postprocess.NewSmoother(s.ip)
		sm.Kind, sm.Log = kind, s.log
		if err = sm.SmoothPartitions(s.ctx, dir, s.ip.NProc, s.ip.ParallelDegree, span); err != nil {
			return
		}
		s.log.Info("smoothed partitions", "dir", dir, "span", span, "partitions", s.ip.NProc)
		return
	},
}

// ClipCmd represents the clip command
var ClipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Clip the inversion parameters of every partition table to a fraction of their range",
	Long: `
Clamps each inversion parameter of each partition to [thresh*min, thresh*max]
in place. The unclipped table is kept as <input>/_noclip/<partition>. A
threshold of 1 or more leaves the tables alone.

seisfields clip --input OUTPUT_FILES/kernels --thresh 0.9`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s   *session
			dir string
		)
		if s, err = loadSession(cmd); err != nil {
			return
		}
		defer s.done()
		kind, err := kindFlag(cmd)
		if err != nil {
			return
		}
		if dir, err = stringFlag(cmd, "input", ""); err != nil {
			return
		}
		thresh := s.ip.ClipThresh
		if cmd.Flags().Changed("thresh") {
			thresh, _ = cmd.Flags().GetFloat64("thresh")
		}
		cl := postprocess.NewClipper(s.ip)
		cl.Kind, cl.Log = kind, s.log
		if err = cl.ClipPartitions(s.ctx, dir, s.ip.NProc, s.ip.ParallelDegree, thresh); err != nil {
			return
		}
		s.log.Info("clipped partitions", "dir", dir, "thresh", thresh, "partitions", s.ip.NProc)
		return
	},
}

func init() {
	rootCmd.AddCommand(SmoothCmd)
	SmoothCmd.Flags().StringP("input", "i", "", "directory of partition tables")
	SmoothCmd.Flags().Float64P("span", "s", 0, "Gaussian standard deviation in coordinate units (default Smooth.Span)")
	SmoothCmd.Flags().StringP("kind", "k", "kernel", "table layout to write: model or kernel")
	rootCmd.AddCommand(ClipCmd)
	ClipCmd.Flags().StringP("input", "i", "", "directory of partition tables")
	ClipCmd.Flags().Float64P("thresh", "t", 1, "fraction of each partition's min and max to keep (default ClipThresh)")
	ClipCmd.Flags().StringP("kind", "k", "kernel", "table layout to write: model or kernel")
}
