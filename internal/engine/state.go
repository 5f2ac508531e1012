package engine

// controllerState is the single-flight execution lifecycle. Exactly one
// opportunity occupies the controller at a time; every path returns to idle.
type controllerState int32

const (
	stateIdle controllerState = iota
	stateAdmitting
	stateProbing
	stateRevalidating
	statePresync
	stateExecuting
	stateRecordingOK
	stateRecordingFail
)

//nolint:gochecknoglobals // static state name table
var stateNames = map[controllerState]string{
	stateIdle:          "IDLE",
	stateAdmitting:     "ADMITTING",
	stateProbing:       "PROBING",
	stateRevalidating:  "REVALIDATING",
	statePresync:       "PRESYNC",
	stateExecuting:     "EXECUTING",
	stateRecordingOK:   "RECORDING_OK",
	stateRecordingFail: "RECORDING_FAIL",
}

func (s controllerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// Outcome is the synchronous admission result returned to the caller after
// the submission has been fully resolved and any records emitted.
type Outcome string

const (
	// OutcomeExecutedOK means all three legs filled and a SUCCESS record
	// was emitted.
	OutcomeExecutedOK Outcome = "EXECUTED_OK"
	// OutcomeExecutedFail means the cycle was admitted but died mid-flight;
	// a FAILED record carries the realized ledger prefix.
	OutcomeExecutedFail Outcome = "EXECUTED_FAIL"

	// OutcomeRejectedBusy covers both a controller already occupied and a
	// projected rate-budget overrun. Nothing is recorded.
	OutcomeRejectedBusy Outcome = "REJECTED_BUSY"
	// OutcomeRejectedHalted means the breaker refused admission. Nothing is
	// recorded.
	OutcomeRejectedHalted Outcome = "REJECTED_HALTED"

	OutcomeRejectedMalformed   Outcome = "REJECTED_MALFORMED"
	OutcomeRejectedStale       Outcome = "REJECTED_STALE"
	OutcomeRejectedThreshold   Outcome = "REJECTED_THRESHOLD"
	OutcomeRejectedThinBook    Outcome = "REJECTED_THIN_BOOK"
	OutcomeRejectedUnconfirmed Outcome = "REJECTED_UNCONFIRMED"
	OutcomeRejectedCancelled   Outcome = "REJECTED_CANCELLED"
)
