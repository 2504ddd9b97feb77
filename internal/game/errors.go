package game

import (
	"errors"
	"fmt"
)

// Numeric error codes returned by the game API, plus a few codes this
// program raises itself for missing static data (1000+ range).
const (
	CodeInvalidPayload  = 422
	CodeTooManyRequests = 429
	CodeNotFound        = 404

	CodeTokenInvalid = 452
	CodeTokenExpired = 453
	CodeTokenMissing = 454

	CodeGoldInsufficient      = 492
	CodeSkillLevelRequired    = 493
	CodeConditionNotMet       = 496
	CodeInventoryFull         = 497
	CodeCharacterNotFound     = 498
	CodeInCooldown            = 499
	CodeMissingItem           = 478
	CodeBankGoldInsufficient  = 460
	CodeBankTxInProgress      = 461
	CodeBankFull              = 462
	CodeGETxInProgress        = 436
	CodeMapNotFound           = 597
	CodeMapContentNotFound    = 598

	// Application-level codes.
	CodeResourceNotFound  = 1000
	CodeMonsterNotFound   = 1001
	CodeWorkshopNotFound  = 1002
	CodeItemNotFound      = 1003
	CodeInvalidTaskState  = 1004
	CodeReservationFailed = 1005
)

// Class partitions error codes by how the worker loop must react.
type Class int

const (
	// ClassGeneric errors log and discard the current task.
	ClassGeneric Class = iota
	// ClassFatal errors stop the owning worker.
	ClassFatal
	// ClassRecoverable errors pause the task and run corrective tasks first.
	ClassRecoverable
	// ClassRetriable errors retry the same step after the next cooldown.
	ClassRetriable
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassRecoverable:
		return "recoverable"
	case ClassRetriable:
		return "retriable"
	default:
		return "generic"
	}
}

var fatalCodes = map[int]struct{}{
	CodeTokenInvalid:     {},
	CodeTokenExpired:     {},
	CodeTokenMissing:     {},
	CodeResourceNotFound: {},
	CodeMonsterNotFound:  {},
	CodeWorkshopNotFound: {},
	CodeItemNotFound:     {},
	CodeInvalidTaskState: {},
}

var recoverableCodes = map[int]struct{}{
	CodeInventoryFull: {},
	CodeBankFull:      {},
}

var retriableCodes = map[int]struct{}{
	CodeInCooldown:       {},
	CodeBankTxInProgress: {},
	CodeGETxInProgress:   {},
	CodeTooManyRequests:  {},
}

// Classify maps an error code to its behavior class.
func Classify(code int) Class {
	if _, ok := fatalCodes[code]; ok {
		return ClassFatal
	}
	if _, ok := recoverableCodes[code]; ok {
		return ClassRecoverable
	}
	if _, ok := retriableCodes[code]; ok {
		return ClassRetriable
	}
	return ClassGeneric
}

// Error is a coded failure from the game API or from static-data lookups.
// Behavior is derived from the code table, never from the message text.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("[%d] %s", e.Code, e.Message) }

func (e *Error) Class() Class { return Classify(e.Code) }

// NewError builds a coded error.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ClassOf extracts the behavior class of err. Non-coded errors are Generic.
func ClassOf(err error) Class {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Class()
	}
	return ClassGeneric
}

// CodeOf returns the numeric code of err, 0 when err carries none.
func CodeOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return 0
}
