package scan

import "fmt"

// Window is an inclusive block span queried with one eth_getLogs call.
type Window struct {
	From uint64
	To   uint64
}

// Windows cuts [from, to] into consecutive spans of at most size blocks so a
// scan of the anchoring contracts stays under the node's log range limit.
func Windows(from, to, size uint64) ([]Window, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("scan range %d-%d is inverted", from, to)
	}

	windows := make([]Window, 0, (to-from)/size+1)
	for start := from; ; start += size {
		if to-start < size {
			windows = append(windows, Window{From: start, To: to})
			return windows, nil
		}
		windows = append(windows, Window{From: start, To: start + size - 1})
	}
}
