// # Loading
//
// Two loaders are provided. Load reads YAML with ${VAR_NAME} substitution
// into any value, and LoadFile applies it to a Config and validates the
// result:
//
//	cfg, err := config.LoadFile("reservoir.yaml")
//
// LoadWithViper layers the defaults, an optional file and RESERVOIR_*
// environment variables, which is what the CLI uses:
//
//	RESERVOIR_WORKLOAD_STEPS=500 reservoir simulate --config reservoir.yaml
//
// # Example File
//
//	name: demo
//	logging:
//	  level: debug
//	  encoding: console
//	pools:
//	  - name: bullets
//	    discipline: linked_list
//	    prewarm_size: 4
//	    max_size: 16
//	    collection_checks: true
//	  - name: encoders
//	    max_size: 4
//	    item:
//	      kind: compressor
//	      algorithm: zstd
//	      level: better
//	workload:
//	  steps: 2000
//	  seed: ${RESERVOIR_SEED}
//	  weights:
//	    acquire: 50
//	    release: 30
//	    release_random: 10
//	    release_all: 5
//	    clear: 5
//
// Each pool entry converts into pool settings options with
// PoolConfig.SettingsOptions.
package config
