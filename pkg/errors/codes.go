package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeInvalidParam   ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeTimeout        ErrorCode = "COMMON_005"
	ErrCodeValidation     ErrorCode = "COMMON_006"
	ErrCodeSerialization  ErrorCode = "COMMON_007"
	ErrCodeDatabaseError  ErrorCode = "COMMON_008"
	ErrCodeCacheError     ErrorCode = "COMMON_009"
	ErrCodeStorageError   ErrorCode = "COMMON_010"
	ErrCodeNotImplemented ErrorCode = "COMMON_011"
)

// Configuration error codes.  Violations are fatal at startup; nothing in the
// evaluation pipeline attempts to recover from them.
const (
	ErrCodeConfigInvalid     ErrorCode = "CFG_001"
	ErrCodeConfigBounds      ErrorCode = "CFG_002"
	ErrCodeConfigTerminal    ErrorCode = "CFG_003"
	ErrCodeConfigOutline     ErrorCode = "CFG_004"
	ErrCodeConfigRetryBudget ErrorCode = "CFG_005"
)

// Geometry and encoding error codes.
const (
	ErrCodeGeometryInvalid    ErrorCode = "GEO_001"
	ErrCodeGeometrySize       ErrorCode = "GEO_002"
	ErrCodeGeometryDegenerate ErrorCode = "GEO_003"
	ErrCodeVectorLength       ErrorCode = "ENC_001"
	ErrCodeVectorFixedClash   ErrorCode = "ENC_002"
	ErrCodeLayerUnknown       ErrorCode = "ENC_003"
	ErrCodeResampleShrink     ErrorCode = "ENC_004"
)

// Random generator error codes.  Exhaustion is a recoverable outcome, not a
// programmer error: callers retry with different size bounds or give up.
const (
	ErrCodeGenExhausted   ErrorCode = "GEN_001"
	ErrCodeGenInvalidMode ErrorCode = "GEN_002"
	ErrCodeGenSize        ErrorCode = "GEN_003"
)

// Design rule check and objective error codes.
const (
	ErrCodeRuleCheckFailed  ErrorCode = "DRC_001"
	ErrCodeRuleUnknown      ErrorCode = "DRC_002"
	ErrCodeObjectiveInvalid ErrorCode = "OBJ_001"
)

// Field solver boundary error codes.
const (
	ErrCodeSolverFailed      ErrorCode = "SOL_001"
	ErrCodeSolverUnavailable ErrorCode = "SOL_002"
)

// Persistence and export error codes.
const (
	ErrCodeStudyNotFound  ErrorCode = "DB_001"
	ErrCodeStudyExists    ErrorCode = "DB_002"
	ErrCodeDesignNotFound ErrorCode = "DB_003"
	ErrCodeExportFailed   ErrorCode = "EXP_001"
)

// Aliases kept short for call-site readability.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeInvalidParam
	CodeNotFound     = ErrCodeNotFound
	CodeValidation   = ErrCodeValidation
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// defaultMessages maps codes to terse fallback messages used when a caller
// constructs an error without one.
var defaultMessages = map[ErrorCode]string{
	ErrCodeInternal:       "internal error",
	ErrCodeInvalidParam:   "invalid parameter",
	ErrCodeNotFound:       "not found",
	ErrCodeConflict:       "conflict",
	ErrCodeTimeout:        "operation timed out",
	ErrCodeValidation:     "validation failed",
	ErrCodeSerialization:  "serialization failed",
	ErrCodeDatabaseError:  "database error",
	ErrCodeCacheError:     "cache error",
	ErrCodeStorageError:   "object storage error",
	ErrCodeNotImplemented: "not implemented",
	ErrCodeConfigInvalid:  "invalid configuration",
	ErrCodeConfigBounds:   "configured bounds violate min <= max",
	ErrCodeVectorLength:   "design vector length mismatch",
	ErrCodeGenExhausted:   "random generation budgets exhausted",
	ErrCodeSolverFailed:   "field solver failed",
	ErrCodeStudyNotFound:  "study not found",
	ErrCodeDesignNotFound: "design not found",
	ErrCodeExportFailed:   "export failed",
}

// DefaultMessageForCode returns the fallback message for a code, or
// "unknown error" when the code has no registered message.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode extracts the module prefix of a code ("GEN" from "GEN_001").
// Used as a metric label when counting failures per subsystem.
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	idx := strings.Index(s, "_")
	if idx <= 0 {
		return "UNKNOWN"
	}
	return s[:idx]
}

// IsFatal reports whether a code denotes a configuration or programmer error
// that must abort the process rather than be absorbed into a sentinel score.
func IsFatal(code ErrorCode) bool {
	switch ModuleForCode(code) {
	case "CFG":
		return true
	}
	switch code {
	case ErrCodeVectorLength, ErrCodeVectorFixedClash, ErrCodeResampleShrink:
		return true
	}
	return false
}
