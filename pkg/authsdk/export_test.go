package authsdk

// ResetDefault clears the process-wide Manager between tests.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager.Store(nil)
}
