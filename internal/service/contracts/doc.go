// Package contracts implements the contract lifecycle.
//
// States:
//   - active -> renewed (a successor was created by RenewContract)
//   - active -> terminated (final)
//
// A renewed contract keeps its dates and rate and accepts no further edits;
// the successor links back through OriginalContractID. Every write also
// re-derives the owning project's progress inside the same unit of work.
package contracts
