package observerip

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrProbeFailed is returned when no probe reply arrived within max-tries attempts.
var ErrProbeFailed = errors.New("ObserverIP network probe failed")

// ErrNoData means a fetch produced nothing usable for this poll cycle.
var ErrNoData = errors.New("no data available")

// ShortPacketError reports a decode that would read past the end of an InfoPacket.
type ShortPacketError struct {
	Offset int
	Need   int
	Len    int
}

func (e *ShortPacketError) Error() string {
	return fmt.Sprintf("info packet too short: need %d bytes at offset %#x, packet is %d bytes", e.Need, e.Offset, e.Len)
}

// ResolveError reports a probe target that does not resolve. It is never retried.
type ResolveError struct {
	Host string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: incorrect hostname or IP: %v", e.Host, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// BoundError reports a calibration value that may not be sent to the device.
type BoundError struct {
	Key   string
	Value string
	Min   float64
	Max   float64
	// Unknown is set when Key has no declared bound at all.
	Unknown bool
	Err     error
}

func (e *BoundError) Error() string {
	switch {
	case e.Unknown:
		return fmt.Sprintf("bound error: no calibration bound declared for %q", e.Key)
	case e.Err != nil:
		return fmt.Sprintf("bound error: %s=%q is not a number: %v", e.Key, e.Value, e.Err)
	default:
		return fmt.Sprintf("bound error: %s=%s outside [%g, %g]", e.Key, e.Value, e.Min, e.Max)
	}
}

func (e *BoundError) Unwrap() error { return e.Err }

// UnitsMismatchError lists station unit settings that differ from the expected ones.
type UnitsMismatchError struct {
	// Mismatches maps setting name to "expected/actual".
	Mismatches map[string][2]string
}

func (e *UnitsMismatchError) Error() string {
	return "station units mismatch: " + formatMismatches(e.Mismatches)
}

// CalibrationMismatchError lists calibration keys whose live value differs from configuration.
type CalibrationMismatchError struct {
	Mismatches map[string][2]string
	// Corrected is set when the mismatch survived an attempt to push the configured values.
	Corrected bool
}

func (e *CalibrationMismatchError) Error() string {
	msg := "calibration error: "
	if e.Corrected {
		msg = "calibration error after correction: "
	}
	return msg + formatMismatches(e.Mismatches)
}

// TransferFileError reports an unreadable or malformed transfer file.
type TransferFileError struct {
	Path string
	Line int
	Err  error
}

func (e *TransferFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("transfer file %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("transfer file %s: %v", e.Path, e.Err)
}

func (e *TransferFileError) Unwrap() error { return e.Err }

func formatMismatches(m map[string][2]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (want %s, have %s)", k, m[k][0], m[k][1]))
	}
	return strings.Join(parts, ", ")
}
