// Package agent contains the agent model and the manager that coordinates a
// fleet of named workers. The package focuses on three concerns:
//
//  1. Agent identity, lifecycle and performance state (Descriptor, Status, Metrics)
//  2. Task delegation against the capability registry with classified failures
//  3. Assistance routing from a failed agent to a ranked candidate helper
//
// Design principles:
//   - No hidden global state: the manager is an explicit, constructible
//     service object injected with its registry and bus
//   - Status transitions are driven only by the manager in response to
//     delegation outcomes
//   - Observability: every delegation publishes action and result/error
//     events on the bus before the call returns
package agent
