package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Primitives is the vocabulary of primitives the workers understand.
var Primitives = []string{"<", "<=", "==", "!=", "mux", "sort"}

// SortPrimitive draws its operand counts from SortNums.
const SortPrimitive = "sort"

// MinWidth is the smallest bit width a worker accepts. Larger widths are
// passed through for the engine to judge.
const MinWidth = 1

// SweepConfig is read-only once Load or Default returns it.
type SweepConfig struct {
	BuildDir   string   `yaml:"build_dir" json:"build_dir"`
	Primitives []string `yaml:"primitives" json:"primitives"`
	Nums       []int    `yaml:"nums" json:"nums"`
	SortNums   []int    `yaml:"sort_nums" json:"sort_nums"`
	Widths     []int    `yaml:"widths" json:"widths"`
	Host       string   `yaml:"host" json:"host,omitempty"`
	BatchSize  int      `yaml:"batch_size" json:"batch_size"`
	Launcher   Launcher `yaml:"launcher" json:"launcher"`
	Workers    Workers  `yaml:"workers" json:"workers"`
	Timeouts   Timeouts `yaml:"timeouts" json:"timeouts"`
	Results    Results  `yaml:"results" json:"results"`
	EnvFile    string   `yaml:"env_file" json:"env_file,omitempty"`
	Docker     Docker   `yaml:"docker" json:"docker"`
	Progress   Progress `yaml:"progress" json:"progress"`
}

// Launcher is the distributed launcher prefixed to every worker command.
type Launcher struct {
	Command  string `yaml:"command" json:"command"`
	BindTo   string `yaml:"bind_to" json:"bind_to"`
	NP       int    `yaml:"np" json:"np"`
	Disabled bool   `yaml:"disabled" json:"disabled"`
}

// Workers locates the two worker executables relative to BuildDir.
type Workers struct {
	Dir        string `yaml:"dir" json:"dir"`
	JIT        string `yaml:"jit" json:"jit"`
	Background string `yaml:"background" json:"background"`
}

type Timeouts struct {
	Result time.Duration `yaml:"result" json:"result"`
	Grace  time.Duration `yaml:"grace" json:"grace"`
}

type Results struct {
	Dir string `yaml:"dir" json:"dir"`
	DB  string `yaml:"db" json:"db,omitempty"`
}

// Docker runs workers in containers when Image is set.
type Docker struct {
	Image      string `yaml:"image" json:"image,omitempty"`
	BuildMount string `yaml:"build_mount" json:"build_mount"`
}

type Progress struct {
	WebSocket  string `yaml:"websocket" json:"websocket,omitempty"`
	MQTTBroker string `yaml:"mqtt_broker" json:"mqtt_broker,omitempty"`
	MQTTTopic  string `yaml:"mqtt_topic" json:"mqtt_topic"`
}

// Default returns the stock sweep grid and launcher settings.
func Default() *SweepConfig {
	return &SweepConfig{
		BuildDir:   "../../build",
		Primitives: slices.Clone(Primitives),
		Nums:       []int{1000, 10000, 100000},
		SortNums:   []int{500, 1000, 5000},
		Widths:     []int{1, 2, 4, 8, 16, 32, 64},
		BatchSize:  1000,
		Launcher: Launcher{
			Command: "mpirun",
			BindTo:  "none",
			NP:      3,
		},
		Workers: Workers{
			Dir:        "primitives/benchmark",
			JIT:        "benchmark_jit_single",
			Background: "benchmark_background_single",
		},
		Timeouts: Timeouts{
			Result: 30 * time.Minute,
			Grace:  100 * time.Millisecond,
		},
		Results: Results{Dir: "results"},
		Docker:  Docker{BuildMount: "/build"},
		Progress: Progress{
			MQTTTopic: "bgjit/progress",
		},
	}
}

// Load overlays the YAML file at path on Default and validates the result.
func Load(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// NumsFor returns the operand counts swept for primitive.
func (c *SweepConfig) NumsFor(primitive string) []int {
	if primitive == SortPrimitive {
		return c.SortNums
	}
	return c.Nums
}

func (c *SweepConfig) Validate() error {
	for _, p := range c.Primitives {
		if !slices.Contains(Primitives, p) {
			return fmt.Errorf("unknown primitive %q (want one of %s)", p, strings.Join(Primitives, " "))
		}
	}
	for _, n := range c.Nums {
		if n < 0 {
			return fmt.Errorf("nums: %d is negative", n)
		}
	}
	for _, n := range c.SortNums {
		if n < 0 {
			return fmt.Errorf("sort_nums: %d is negative", n)
		}
	}
	for _, w := range c.Widths {
		if w < MinWidth {
			return fmt.Errorf("widths: %d is below %d", w, MinWidth)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if !c.Launcher.Disabled {
		if c.Launcher.Command == "" {
			return fmt.Errorf("launcher.command is required unless launcher.disabled is set")
		}
		if c.Launcher.NP < 1 {
			return fmt.Errorf("launcher.np must be at least 1")
		}
	}
	if c.Workers.JIT == "" || c.Workers.Background == "" {
		return fmt.Errorf("workers.jit and workers.background are required")
	}
	if c.Timeouts.Result <= 0 {
		return fmt.Errorf("timeouts.result must be positive")
	}
	if c.Timeouts.Grace < 0 {
		return fmt.Errorf("timeouts.grace must not be negative")
	}
	if c.Results.Dir == "" {
		return fmt.Errorf("results.dir is required")
	}
	return nil
}
