package observer

import "github.com/delaneyj/reactograph/manager"

// WaitForAllUpdates blocks until the dirty queue is empty and no worker is
// evaluating (spec §6's wait_for_all_updates free function).
func WaitForAllUpdates() {
	manager.Default().WaitForAllUpdates()
}
