package http

// Status codes kiln can put on the wire.
const (
	StatusOK                           uint16 = 200
	StatusPartialContent               uint16 = 206
	StatusUnauthorized                 uint16 = 401
	StatusNotFound                     uint16 = 404
	StatusMethodNotAllowed             uint16 = 405
	StatusRequestTimeout               uint16 = 408
	StatusRequestedRangeNotSatisfiable uint16 = 416
)

const unknownStatusCode = "Unknown Status Code"

var statusMessages = map[uint16]string{
	StatusOK:                           "OK",
	StatusPartialContent:               "Partial Content",
	StatusUnauthorized:                 "Unauthorized",
	StatusNotFound:                     "Not Found",
	StatusMethodNotAllowed:             "Method Not Allowed",
	StatusRequestTimeout:               "Request Timeout",
	StatusRequestedRangeNotSatisfiable: "Requested Range Not Satisfiable",
}

// StatusText returns the reason phrase for code.
func StatusText(code uint16) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return unknownStatusCode
}
