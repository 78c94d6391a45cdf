package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageSeed is one default stage definition from the seed file.
type StageSeed struct {
	Title  string `yaml:"title"`
	Color  string `yaml:"color"`
	IsWon  bool   `yaml:"isWon"`
	IsLost bool   `yaml:"isLost"`
}

type stageSeedFile struct {
	Stages []StageSeed `yaml:"stages"`
}

// LoadStageSeeds reads the default stage set from a YAML file. A missing path
// yields the built-in fallback so a fresh deployment still gets a usable
// pipeline.
func LoadStageSeeds(path string) ([]StageSeed, error) {
	if path == "" {
		return defaultStageSeeds(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultStageSeeds(), nil
		}
		return nil, fmt.Errorf("read stage seed file: %w", err)
	}

	var file stageSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stage seed file: %w", err)
	}
	if len(file.Stages) == 0 {
		return defaultStageSeeds(), nil
	}

	return file.Stages, nil
}

func defaultStageSeeds() []StageSeed {
	return []StageSeed{
		{Title: "Entrada", Color: "#94a3b8"},
		{Title: "Em Atendimento", Color: "#60a5fa"},
		{Title: "Proposta", Color: "#fbbf24"},
		{Title: "Ganho", Color: "#34d399", IsWon: true},
		{Title: "Perdido", Color: "#f87171", IsLost: true},
	}
}
