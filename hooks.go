package ygggo_mysqlrw

// ExecuteHook observes a physical statement execution. It receives the
// executing handle; CurrentSQL tells what runs.
type ExecuteHook func(d *DB)

// SetBeforeExecuteHook installs a hook called right before every physical
// execution, retries included. nil removes it.
func (m *Manager) SetBeforeExecuteHook(h ExecuteHook) {
	m.hookMu.Lock()
	m.before = h
	m.hookMu.Unlock()
}

// SetAfterExecuteHook installs a hook called after every successful
// physical execution. nil removes it.
func (m *Manager) SetAfterExecuteHook(h ExecuteHook) {
	m.hookMu.Lock()
	m.after = h
	m.hookMu.Unlock()
}

// SetFailedExecuteHook installs a hook called after every failed physical
// execution, including attempts that are retried. nil removes it.
func (m *Manager) SetFailedExecuteHook(h ExecuteHook) {
	m.hookMu.Lock()
	m.failed = h
	m.hookMu.Unlock()
}

func (m *Manager) beforeExecute(d *DB) {
	m.hookMu.RLock()
	h := m.before
	m.hookMu.RUnlock()
	if h != nil {
		h(d)
	}
}

func (m *Manager) afterExecute(d *DB) {
	m.hookMu.RLock()
	h := m.after
	m.hookMu.RUnlock()
	if h != nil {
		h(d)
	}
}

func (m *Manager) failedExecute(d *DB) {
	m.hookMu.RLock()
	h := m.failed
	m.hookMu.RUnlock()
	if h != nil {
		h(d)
	}
}
