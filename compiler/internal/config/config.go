package config

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/allocation"
	"github.com/xiaobogaga/moonc/moon"
	"github.com/xiaobogaga/moonc/util"
	"gopkg.in/yaml.v2"
)

// Grammar points at an external LL(1) table and its FIRST/FOLLOW sets. Both empty means the built-in
// Moon grammar.
type Grammar struct {
	Table       string `yaml:"table"`
	FirstFollow string `yaml:"firstFollow"`
}

// Output selects which artifacts a compilation writes next to the .moon file.
type Output struct {
	// Dir is where the artifacts go, the source file's directory when empty.
	Dir         string `yaml:"dir"`
	Derivation  bool   `yaml:"derivation"`
	AST         bool   `yaml:"ast"`
	SymbolTable bool   `yaml:"symbolTable"`
}

// Run executes the generated program on the Moon emulator after a successful compilation.
type Run struct {
	Enabled bool   `yaml:"enabled"`
	Input   string `yaml:"input"`
	Memory  int    `yaml:"memory"`
	Steps   int    `yaml:"steps"`
}

type Config struct {
	Grammar Grammar `yaml:"grammar"`
	Entry   string  `yaml:"entry"`
	Layout  string  `yaml:"layout"`
	Output  Output  `yaml:"output"`
	Run     Run     `yaml:"run"`
}

func Default() *Config {
	return &Config{
		Entry:  "main",
		Layout: string(allocation.InheritedFirst),
		Output: Output{Derivation: true, AST: true, SymbolTable: true},
		Run:    Run{Memory: moon.DefaultMemorySize, Steps: moon.DefaultMaxSteps},
	}
}

// Load reads a YAML config over the defaults. Unknown keys are an error.
func Load(rd io.Reader) (*Config, error) {
	content, err := ioutil.ReadAll(rd)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c := Default()
	if err = yaml.UnmarshalStrict(content, c); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile loads the config at path, or returns the defaults when path is empty.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()
	c, err := Load(f)
	return c, errors.Wrapf(err, "config: %s", path)
}

func (c *Config) Validate() error {
	if !util.IsIdentifier(c.Entry) {
		return errors.Errorf("config: entry %q is not an identifier", c.Entry)
	}
	if _, err := allocation.ParseLayout(c.Layout); err != nil {
		return errors.Wrap(err, "config")
	}
	if (c.Grammar.Table == "") != (c.Grammar.FirstFollow == "") {
		return errors.New("config: grammar table and firstFollow must be given together")
	}
	if c.Run.Memory <= 0 || c.Run.Steps <= 0 {
		return errors.New("config: run memory and steps must be positive")
	}
	return nil
}

func (c *Config) String() string {
	content, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(content)
}
