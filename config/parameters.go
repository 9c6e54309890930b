package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/spatial"
)

// linkDocument is the on-disk shape of a PARAMETER_FILE_NAME document
// (spec.md §6): one entry per joint, in link-parameter-table order.
type linkDocument struct {
	Links []linkEntry `yaml:"links"`
}

type linkEntry struct {
	Kind     string  `yaml:"kind"` // "dh" or "parallel_point", default "dh"
	Type     string  `yaml:"type"` // "linear" or "angular", default "angular"
	A        float32 `yaml:"a"`
	Alpha    float32 `yaml:"alpha"`
	D        float32 `yaml:"d"`
	Theta    float32 `yaml:"theta"`
	Base     [3]float32 `yaml:"base"`
	Platform [3]float32 `yaml:"platform"`
	MinLimit float32 `yaml:"min_limit"`
	MaxLimit float32 `yaml:"max_limit"`
}

// LoadLinks reads a PARAMETER_FILE_NAME YAML document into a kinematics
// link-parameter table (spec.md §6, "Kinematics plug-in interface").
func LoadLinks(path string) ([]kinematics.Link, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc linkDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	links := make([]kinematics.Link, len(doc.Links))
	for i, e := range doc.Links {
		l := kinematics.Link{MinLimit: e.MinLimit, MaxLimit: e.MaxLimit}
		if strings.EqualFold(e.Type, "linear") {
			l.Type = spatial.Linear
		} else {
			l.Type = spatial.Angular
		}
		switch strings.ToLower(e.Kind) {
		case "parallel_point":
			l.Kind = kinematics.LinkParallelPoint
			l.PP = kinematics.ParallelPointParams{
				Base:     spatial.Vec3{X: e.Base[0], Y: e.Base[1], Z: e.Base[2]},
				Platform: spatial.Vec3{X: e.Platform[0], Y: e.Platform[1], Z: e.Platform[2]},
			}
		default:
			l.Kind = kinematics.LinkDH
			l.DH = kinematics.DHParams{A: e.A, Alpha: e.Alpha, D: e.D, Theta: e.Theta}
		}
		links[i] = l
	}
	return links, nil
}

// toolDocument is the on-disk shape of a TOOL_FILE_NAME document (spec.md
// §6): a named output table consumed by toolloop.Loop.
type toolDocument struct {
	Outputs []string `yaml:"outputs"`
}

// LoadToolNames reads a TOOL_FILE_NAME YAML document into an ordered list
// of named tool outputs; the list's length becomes the tool loop's
// NumOutputs.
func LoadToolNames(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc toolDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return doc.Outputs, nil
}
