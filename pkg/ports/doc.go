/*
Package ports defines the driven ports (interfaces) for the stagehand runtime.

These interfaces decouple the fleet manager from external implementations,
allowing machine configuration to live in memory, on disk or in Redis.

# Key Interfaces

  - ConfigStore: Responsible for persisting and loading MachineConfig.
  - ConfigLocker: per-machine lock held by a replica while it writes config.
*/
package ports
