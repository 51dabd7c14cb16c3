package protocol

type SyncError struct {
    message string
    code int
}

func (syncError SyncError) Error() string {
    return syncError.message
}

func (syncError SyncError) Code() int {
    return syncError.code
}

const (
    eSERIALIZATION = iota
    ePROTOCOL_VIOLATION = iota
    eUNKNOWN_REQUEST = iota
    eDUPLICATE_REQUEST = iota
    eCLOSED = iota
    eTRANSPORT = iota
)

var (
    ESerialization     = SyncError{ "Message is not properly formatted", eSERIALIZATION }
    EProtocolViolation = SyncError{ "Message is not legal in the current protocol state", ePROTOCOL_VIOLATION }
    EUnknownRequest    = SyncError{ "Response does not correlate with any outstanding request", eUNKNOWN_REQUEST }
    EDuplicateRequest  = SyncError{ "Request id is already in use by an outstanding request", eDUPLICATE_REQUEST }
    EClosed            = SyncError{ "Primary connection closed", eCLOSED }
    ETransport         = SyncError{ "The underlying transport experienced an error", eTRANSPORT }
)
