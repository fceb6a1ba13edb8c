package status

// Run represents the state of one region extraction run
type Run string

const (
	RunSeeding     Run = "seeding"      // rendering page, extracting seed
	RunPaginating  Run = "paginating"   // walking the screener endpoint
	RunDone        Run = "done"         // screener path exhausted
	RunFallingBack Run = "falling_back" // scraping embedded page state
	RunNormalizing Run = "normalizing"  // mapping raw quotes to records
	RunEnriching   Run = "enriching"    // backfilling currency / market cap
	RunComplete    Run = "complete"     // records handed to sinks
	RunFailed      Run = "failed"       // no usable source
)

// IsTerminal reports whether no further transition is possible
func (r Run) IsTerminal() bool {
	return r == RunComplete || r == RunFailed
}

// Valid reports whether r is a known run state
func (r Run) Valid() bool {
	_, ok := RunTransitions[r]
	return ok
}
