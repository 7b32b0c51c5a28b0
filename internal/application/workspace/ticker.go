package workspace

import "time"

// ticker calls fn on every interval until halted
type ticker struct {
	stop chan struct{}
}

func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{stop: make(chan struct{})}
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// halt does not wait for an in-flight fn, which may need the workspace lock
func (t *ticker) halt() {
	close(t.stop)
}
