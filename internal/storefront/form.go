package storefront

import "sync"

// Form holds the checkout inputs. It is safe for concurrent use.
type Form struct {
	mu    sync.RWMutex
	name  string
	phone string
}

func (f *Form) Set(name, phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
	f.phone = phone
}

// Details returns the inputs as typed.
func (f *Form) Details() (name, phone string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.name, f.phone
}

// Reset empties the form after a confirmed order.
func (f *Form) Reset() {
	f.Set("", "")
}
