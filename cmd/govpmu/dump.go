package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snippits/govpmu/internal/shm"
)

var dumpRegionPath string

// dumpCmd does a one-shot connect to an existing shared-memory
// region by path and reports its size. A literal cross-process
// StreamLayout decode is out of scope here: this back-end's workers
// are goroutines inside the producer's own address space (see
// internal/transport/multiprocess.go's doc comment), so the region
// backs the trace buffer's lifecycle, not a byte-for-byte wire format
// a separate OS process could parse independently. This command is
// therefore limited to the liveness/size check a real one-shot dump
// tool would do before attempting the full decode.
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Connect to a running stream's shared-memory region and report its status",
	Run: func(cmd *cobra.Command, args []string) {
		region, err := shm.Open(dumpRegionPath, 4096)
		if err != nil {
			logrus.WithError(err).Fatal("failed to open shared region")
		}
		defer region.Close()
		logrus.WithFields(logrus.Fields{
			"path":  region.Path,
			"bytes": len(region.Data),
		}).Info("connected to shared region")
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpRegionPath, "region", "", "Path to the shared-memory region's backing file")
	dumpCmd.MarkFlagRequired("region")
}
