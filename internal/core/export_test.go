package core

// SetLookupEnvForTesting replaces the environment lookup with fn so the
// external test package can exercise the merged view without mutating the
// process environment. Exported only via export_test.go.
func (f *Facade) SetLookupEnvForTesting(fn func(key string) (string, bool)) {
	f.lookupEnv = fn
}
