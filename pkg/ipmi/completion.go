package ipmi

import "fmt"

// CompletionCode is the one-byte IPMI completion code ("ccode") every
// response carries. 0x00 means success; the rest are laid out in bands
// per IPMI v2 table 5-2.
type CompletionCode uint8

const (
	Success                  CompletionCode = 0x00
	NodeBusy                 CompletionCode = 0xC0
	InvalidCmd               CompletionCode = 0xC1
	InvalidCmdForLUN         CompletionCode = 0xC2
	Timeout                  CompletionCode = 0xC3
	OutOfSpace               CompletionCode = 0xC4
	ReservationCanceled      CompletionCode = 0xC5
	RequestDataTruncated     CompletionCode = 0xC6
	RequestDataLenInvalid    CompletionCode = 0xC7
	RequestDataFieldExceeded CompletionCode = 0xC8
	ParamOutOfRange          CompletionCode = 0xC9
	BufferTooSmall           CompletionCode = 0xCA
	SensorNotFound           CompletionCode = 0xCB
	InvalidDataField         CompletionCode = 0xCC
	IllegalCmd               CompletionCode = 0xCD
	NoResponse               CompletionCode = 0xCE
	DuplicateRequest         CompletionCode = 0xCF
	SDRUpdateInProgress      CompletionCode = 0xD0
	FwUpdateInProgress       CompletionCode = 0xD1
	BMCInitInProgress        CompletionCode = 0xD2
	DestUnavailable          CompletionCode = 0xD3
	InsufficientPrivilege    CompletionCode = 0xD4
	CmdTempUnsupported       CompletionCode = 0xD5
	CmdDisabled              CompletionCode = 0xD6
	RepoTempUnavailLo        CompletionCode = 0xDC
	RepoTempUnavailHi        CompletionCode = 0xDF
	UnspecifiedError         CompletionCode = 0xFF
)

// IsTemporarilyUnavailable reports whether c means the SDR repository is
// in a transitional state (update in progress) and the caller should sleep
// and retry rather than treat the record as gone. Exactly the band
// 0xDC..0xDF; 0xD0..0xD6 are a different (non-repo) family of "in
// progress" codes and are not covered by this check.
func (c CompletionCode) IsTemporarilyUnavailable() bool {
	return c >= 0xDC && c <= 0xDF
}

// IsGeneric reports whether c falls in the generic completion code range
// defined by IPMI itself (as opposed to a command- or OEM-specific code).
func (c CompletionCode) IsGeneric() bool {
	return c == 0x00 || (c >= 0xC0 && c <= 0xFF)
}

var completionStrings = map[CompletionCode]string{
	Success:                  "command completed normally",
	NodeBusy:                 "node busy",
	InvalidCmd:               "invalid command",
	InvalidCmdForLUN:         "command invalid for given LUN",
	Timeout:                  "timeout while processing command",
	OutOfSpace:               "out of space",
	ReservationCanceled:      "reservation canceled or invalid reservation ID",
	RequestDataTruncated:     "request data truncated",
	RequestDataLenInvalid:    "request data length invalid",
	RequestDataFieldExceeded: "request data field length limit exceeded",
	ParamOutOfRange:          "parameter out of range",
	BufferTooSmall:           "cannot return number of requested data bytes",
	SensorNotFound:           "requested sensor, data, or record not found",
	InvalidDataField:         "invalid data field in request",
	IllegalCmd:               "command illegal for specified sensor or record type",
	NoResponse:               "command response could not be provided",
	DuplicateRequest:         "cannot execute duplicated request",
	SDRUpdateInProgress:      "command response could not be provided: SDR repository in update mode",
	FwUpdateInProgress:       "command response could not be provided: device in firmware update mode",
	BMCInitInProgress:        "command response could not be provided: BMC initialization in progress",
	DestUnavailable:          "destination unavailable",
	InsufficientPrivilege:    "cannot execute command: insufficient privilege level",
	CmdTempUnsupported:       "command, command version, or parameter not supported in present state",
	CmdDisabled:              "cannot execute command: command, command version, or parameter disabled",
	UnspecifiedError:         "unspecified error",
}

// String renders the completion code the way the original tool's log
// messages do: a descriptive phrase for known codes, the raw hex value
// with a generic/command-specific/OEM band label otherwise.
func (c CompletionCode) String() string {
	if s, ok := completionStrings[c]; ok {
		return s
	}
	switch {
	case c.IsTemporarilyUnavailable():
		return fmt.Sprintf("SDR repository temporarily unavailable (update in progress) 0x%02x", uint8(c))
	case c < 0x80:
		return fmt.Sprintf("device specific (OEM) completion code 0x%02x", uint8(c))
	case c >= 0x80 && c <= 0xBE:
		return fmt.Sprintf("command-specific completion code 0x%02x", uint8(c))
	default:
		return fmt.Sprintf("unknown completion code 0x%02x", uint8(c))
	}
}
