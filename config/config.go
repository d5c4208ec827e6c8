// Package config loads VRM export settings for plain glTF models and
// applies them as a VRM 0.x extension.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// PresetDir is the directory, next to the executable or the config file,
// that holds named presets.
const PresetDir = "vrmconfig_presets"

const maxPresetDepth = 8

type Config struct {
	Metadata vrm.Metadata `json:"meta"`

	BoneMappings        []*BoneMapping              `json:"boneMappings"`
	MorphMappings       []*MorphMapping             `json:"morphMappings"`
	MaterialSettings    map[string]*MaterialSetting `json:"materialSettings"`
	AnimationBoneGroups []*AnimationBoneGroup       `json:"animationBoneGroups"`

	// Preset names a config in PresetDir applied under this one.
	Preset string `json:"preset"`

	preset *Config
}

type BoneMapping struct {
	vrm.Bone
	NodeName string `json:"nodeName"`
}

// MorphMapping binds a blend shape to a morph target, by target name or by
// node and target index.
type MorphMapping struct {
	Name        string `json:"name"`
	NodeName    string `json:"nodeName"`
	TargetName  string `json:"targetName"`
	TargetIndex int    `json:"targetIndex"`
}

type MaterialSetting struct {
	ForceUnlit bool   `json:"forceUnlit"`
	AlphaMode  string `json:"alphaMode"`
}

type AnimationBoneGroup struct {
	vrm.SecondaryAnimationBoneGroup
	NodeNames []string `json:"nodeNames"`
}

// UnmarshalJSON shadows the promoted method of the embedded group, which
// would drop NodeNames.
func (g *AnimationBoneGroup) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &g.SecondaryAnimationBoneGroup); err != nil {
		return err
	}
	var names struct {
		NodeNames []string `json:"nodeNames"`
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	g.NodeNames = names.NodeNames
	return nil
}

// Parse decodes a config. YAML documents go through the JSON field names, so
// both formats share one set of keys.
func Parse(data []byte, format string) (*Config, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, vrmerr.Wrapf(vrmerr.InvalidDocument, "config", err, "yaml")
		}
		j, err := json.Marshal(jsonValue(v))
		if err != nil {
			return nil, vrmerr.Wrapf(vrmerr.InvalidDocument, "config", err, "yaml")
		}
		data = j
	case "json", "":
	default:
		return nil, vrmerr.New(vrmerr.InvalidDocument, "config", "unknown format %q", format)
	}
	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, vrmerr.Wrapf(vrmerr.InvalidDocument, "config", err, "json")
	}
	return &conf, nil
}

// jsonValue converts yaml.v2 maps, which have interface{} keys.
func jsonValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[toString(k)] = jsonValue(e)
		}
		return m
	case []interface{}:
		for i, e := range v {
			v[i] = jsonValue(e)
		}
	}
	return v
}

func toString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, _ := json.Marshal(k)
	return strings.Trim(string(b), `"`)
}

// Load reads a .json, .yaml or .yml config and resolves its preset chain.
func Load(path string) (*Config, error) {
	return load(path, 0)
}

func load(path string, depth int) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conf, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	if conf.Preset == "" {
		return conf, nil
	}
	if depth >= maxPresetDepth {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "config", "%s: preset chain too deep", path)
	}
	presetPath, err := findPreset(conf.Preset, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if conf.preset, err = load(presetPath, depth+1); err != nil {
		return nil, errors.WithMessagef(err, "preset %s", conf.Preset)
	}
	return conf, nil
}

func presetDirs(configDir string) []string {
	dirs := []string{filepath.Join(configDir, PresetDir)}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), PresetDir))
	}
	return dirs
}

func findPreset(name, configDir string) (string, error) {
	for _, dir := range presetDirs(configDir) {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			p := filepath.Join(dir, name+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", vrmerr.New(vrmerr.InvalidDocument, "config", "preset %s not found", name)
}

// Chain lists the config and its presets, most specific first.
func (c *Config) Chain() []*Config {
	var chain []*Config
	for ; c != nil; c = c.preset {
		chain = append(chain, c)
	}
	return chain
}
