package kernel

// cleanup.go is resource cleanup on process exit (spec.md §4.13): walks
// every kernel table releasing entries owned by the exiting process.
// Grounded on the table-walk idiom used throughout internal/vm/internal/
// monitor (every ReleaseOwnedBy here mirrors intr.go's Requested walk).

// CleanupProcessResources releases every mapping, handle, and channel owned
// by pid, resetting ownership and clearing slots. Idempotent: a second call
// on the same pid returns 0, since ReleaseOwnedBy only ever finds allocated
// entries still owned by pid.
func (k *Kernel) CleanupProcessResources(pid uint32) int {
	n := k.Mappings.ReleaseOwnedBy(&k.Pages, pid)
	n += k.Handles.ReleaseOwnedBy(pid)
	n += k.Channels.ReleaseOwnedBy(pid)

	return n
}
