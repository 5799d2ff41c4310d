// Package config loads the two configuration surfaces spec.md §6
// describes: a per-stream JSON array of simulator descriptors, and a
// top-level YAML run configuration (platform info, back-end choice,
// heartbeat timeout, window size, phase threshold).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/snippits/govpmu/vpmu"
	"github.com/snippits/govpmu/vpmuerr"
)

// SimDescriptor is one entry of a per-stream simulator descriptor
// array. Name is always required; the remaining fields are only
// meaningful for the simulator kinds that use them (branch:
// MissLatency; cache: Latency/Size/Ways/LineSize/Levels). Unknown
// JSON fields are ignored, matching spec.md §6 ("unknown fields:
// ignored").
type SimDescriptor struct {
	Name string `json:"name"`

	// Branch predictors.
	MissLatency uint64 `json:"miss latency"`

	// Cache hierarchies.
	Latency  []uint64 `json:"latency"`
	Size     []uint64 `json:"size"`
	Ways     []int    `json:"ways"`
	LineSize []uint32 `json:"line_size"`
	Levels   int      `json:"levels"`
}

// LoadSimDescriptors parses a per-stream JSON simulator-descriptor
// document. The document is either a single object or an array of
// objects; both shapes are accepted since spec.md §6 allows either.
func LoadSimDescriptors(data []byte) ([]SimDescriptor, error) {
	trimmed := firstNonSpace(data)
	var descs []SimDescriptor
	if trimmed == '[' {
		if err := json.Unmarshal(data, &descs); err != nil {
			return nil, vpmuerr.Config("sim descriptor array", err)
		}
	} else {
		var one SimDescriptor
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, vpmuerr.Config("sim descriptor object", err)
		}
		descs = []SimDescriptor{one}
	}
	for i := range descs {
		if descs[i].Name == "" {
			return nil, vpmuerr.Config(fmt.Sprintf("descriptor[%d].name", i), fmt.Errorf("missing required key"))
		}
	}
	return descs, nil
}

// LoadSimDescriptorsFile reads path and parses it as sim descriptors.
func LoadSimDescriptorsFile(path string) ([]SimDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vpmuerr.Resource("read sim descriptor file "+path, err)
	}
	return LoadSimDescriptors(data)
}

// ToModel converts a descriptor into the vpmu.Model its named
// simulator expects, defaulting level names and inclusiveness
// (non-inclusive unless the descriptor says otherwise is not
// representable in JSON, so every configured level is inclusive —
// matching the original's fixed L1/L2-inclusive split).
func (d SimDescriptor) ToModel(frequencyMHz float64) vpmu.Model {
	m := vpmu.Model{
		Name:              d.Name,
		MissLatencyCycles: d.MissLatency,
		FrequencyMHz:      frequencyMHz,
	}
	for i := 0; i < d.Levels; i++ {
		lvl := vpmu.CacheLevelConfig{Name: fmt.Sprintf("L%d", i+1), Inclusive: true}
		if i < len(d.Ways) {
			lvl.Ways = d.Ways[i]
		}
		if i < len(d.Size) {
			lvl.SizeBytes = d.Size[i]
		}
		if i < len(d.LineSize) {
			lvl.LineSize = d.LineSize[i]
		}
		if i < len(d.Latency) {
			lvl.LatencyCycle = d.Latency[i]
		}
		m.CacheLevels = append(m.CacheLevels, lvl)
	}
	return m
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
