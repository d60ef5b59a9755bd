package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/reservoir/pkg/config"
)

// ExampleNewConfig demonstrates creating a configuration with default values.
func ExampleNewConfig() {
	cfg := config.NewConfig("demo")

	fmt.Printf("Pools: %d\n", len(cfg.Pools))
	fmt.Printf("Discipline: %s\n", cfg.Pools[0].Discipline)
	fmt.Printf("Max Size: %d\n", cfg.Pools[0].MaxSize)
	fmt.Printf("Steps: %d\n", cfg.Workload.Steps)

	// Output:
	// Pools: 1
	// Discipline: stack
	// Max Size: 64
	// Steps: 10000
}

// ExampleConfig_Validate shows how to validate a configuration before using it.
func ExampleConfig_Validate() {
	cfg := config.NewConfig("demo")
	cfg.Pools = append(cfg.Pools, config.PoolConfig{
		Name:       "encoders",
		Discipline: "linked_list",
		MaxSize:    4,
		Item:       config.ItemConfig{Kind: config.ItemKindCompressor, Algorithm: "zstd"},
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.Pools[1].PrewarmSize = 8
	fmt.Println(cfg.Validate() != nil)

	// Output:
	// Configuration is valid!
	// true
}
