// Package stage names the pipeline stages.
package stage

// Pipeline stage names used in logs, metrics labels and error details.
const (
	Keeper    = "keeper"
	Metadata  = "metadata"
	Cover     = "cover"
	Submit    = "submit"
	Poll      = "poll"
	Save      = "save"
	Retry     = "retry"
	Stale     = "stale_cleanup"
	Lifecycle = "lifecycle"
	Recovery  = "recovery"
)

// All lists the processor stages in dispatch order.
func All() []string {
	return []string{Keeper, Metadata, Cover, Submit, Poll, Save, Retry, Stale, Lifecycle}
}
