package pvm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config carries the tunables of a runtime instance. Zero fields take the
// defaults below.
type Config struct {
	// HeapWords is the heaplet word budget.
	HeapWords int `toml:"heap_words"`

	// StackSlots is the capacity of the operand stack; the return and
	// exception handler stacks get StackSlots/4 each.
	StackSlots int `toml:"stack_slots"`

	// LogCollections enables per-cycle debug logging.
	LogCollections bool `toml:"log_collections"`
}

// Defaults for zero Config fields.
const (
	DefaultHeapWords  = 1 << 22
	DefaultStackSlots = 1 << 16
)

func (c *Config) fillDefaults() {
	if c.HeapWords <= 0 {
		c.HeapWords = DefaultHeapWords
	}
	if c.StackSlots <= 0 {
		c.StackSlots = DefaultStackSlots
	}
}

// LoadConfig reads a TOML runtime configuration from path.
func LoadConfig(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("pvm: reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("pvm: parsing config %s: %w", path, err)
	}
	c.fillDefaults()
	return c, nil
}
