package ftp

import "time"

// Control channel replies. StatusData commits the responder to one payload
// frame on the data channel; every other status is terminal.
const (
	StatusData            = "DATA"
	StatusFileNotFound    = "FILE NOT FOUND"
	StatusInvalidCommand  = "INVALID COMMAND"
	StatusInvalidPort     = "INVALID PORT"
	StatusPortMismatch    = "DATA PORT MISMATCH"
	StatusFileTooLarge    = "FILE TOO LARGE"
	StatusPortUnavailable = "DATA PORT UNAVAILABLE"
	StatusListingFailed   = "LISTING UNAVAILABLE"
	StatusListingTooLarge = "LISTING TOO LARGE"
)

const (
	DefaultAcceptTimeout  = 30 * time.Second // responder waits this long for the data dial
	DefaultSessionTimeout = 2 * time.Minute
)
