package main

import (
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snippits/govpmu/config"
	"github.com/snippits/govpmu/internal/transport"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/simulator/branch"
	"github.com/snippits/govpmu/stream"
	"github.com/snippits/govpmu/vpmu"
)

var (
	runConfigPath string
	runStreamName string
	runRefCount   int
)

// runCmd boots exactly one Stream[vpmu.BranchRef] against a
// synthetic, uniformly-random taken/not-taken reference feed and
// prints each worker's final accuracy snapshot. It exists to exercise
// the transport end to end without a real emulator attached; a
// CPURef or CacheRef stream follows the identical Build/SendRef/Sync
// sequence in its own package.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot a stream against a config file and a synthetic reference feed",
	Run: func(cmd *cobra.Command, args []string) {
		run, err := config.LoadRunConfigFile(runConfigPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load run config")
		}
		streamCfg, ok := run.Streams[runStreamName]
		if !ok {
			logrus.Fatalf("no stream named %q in %s", runStreamName, runConfigPath)
		}

		reg := simulator.NewRegistry[vpmu.BranchRef]()
		branch.Register(reg)

		backend := stream.BackendFromName(streamCfg.Backend)
		coreCount := run.Platform.CoreCount
		if coreCount <= 0 {
			coreCount = 1
		}

		producerAlive := transport.NewPIDLivenessFunc(os.Getpid())
		s := stream.New[vpmu.BranchRef](backend, coreCount, run, producerAlive, logrus.StandardLogger())
		if err := s.Build(streamCfg, reg, run.Platform.FrequencyMHz); err != nil {
			logrus.WithError(err).Fatal("failed to build stream")
		}
		defer s.Destroy()

		for i := 0; i < runRefCount; i++ {
			core := i % coreCount
			ref := vpmu.Reference[vpmu.BranchRef]{
				Payload: vpmu.BranchRef{Core: core, PC: uint64(i * 4), Taken: rand.Intn(2) == 1},
			}
			s.SendRef(core, ref)
		}

		results := s.Sync(1)
		for id, data := range results {
			logrus.WithFields(logrus.Fields{"worker": id, "data": data}).Info("sync snapshot")
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to the YAML run config")
	runCmd.Flags().StringVar(&runStreamName, "stream", "branch", "Name of the stream (key into the run config's streams map) to boot")
	runCmd.Flags().IntVar(&runRefCount, "refs", 1000, "Number of synthetic references to push through the stream")
	runCmd.MarkFlagRequired("config")
}
