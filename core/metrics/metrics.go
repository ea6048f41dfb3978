// Package metrics holds the backend-neutral pieces shared by the store's
// instrumentation. Concrete backends live under adapters/, so core packages
// never import a metrics library.
package metrics

// Timer measures one operation. Call ObserveDuration when it completes.
type Timer interface {
	ObserveDuration()
}
