package http

type Header struct {
	Key   string
	Value string
}

// Range is a byte range as written by the client. Start and End are only
// meaningful when their Set flag is true; a negative Start asks for a suffix.
type Range struct {
	Start    int64
	End      int64
	StartSet bool
	EndSet   bool
}

func (r Range) Requested() bool {
	return r.StartSet || r.EndSet
}

// Resolve maps the range onto a resource of size bytes and returns the
// inclusive window. It reports false when the range cannot be satisfied.
func (r Range) Resolve(size int64) (int64, int64, bool) {
	if size <= 0 {
		return 0, 0, false
	}

	start, end := r.Start, size-1
	if start < 0 {
		start = max(size+start, 0)
	} else if r.EndSet {
		end = r.End
		if end < 0 {
			end = size - 1 + end
		}
	}

	if end >= size {
		end = size - 1
	}
	if end < start {
		return 0, 0, false
	}

	return start, end, true
}

type Request struct {
	Method  string
	URI     string
	Version string

	// HeaderList keeps headers in arrival order, keys upper-cased. Repeated
	// keys stay separate entries.
	HeaderList []Header

	Body  []byte
	Range Range

	TimedOut   bool
	RemoteAddr string
	RemotePort uint16

	// Payload holds content generated by a built-in handler.
	Payload []byte

	ParseErr string
}

// Header returns the first value stored under key.
func (req *Request) Header(key string) (string, bool) {
	key = toUpper(key)
	for _, h := range req.HeaderList {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Headers returns every value stored under key, in arrival order.
func (req *Request) Headers(key string) []string {
	key = toUpper(key)

	var values []string
	for _, h := range req.HeaderList {
		if h.Key == key {
			values = append(values, h.Value)
		}
	}
	return values
}

func (req *Request) AddHeader(key, value string) {
	req.HeaderList = append(req.HeaderList, Header{Key: toUpper(key), Value: value})
}

func (req *Request) Valid() bool {
	return !req.TimedOut && req.Method != "" && req.URI != "" && req.Version != ""
}

func (req *Request) Reset() {
	req.Method = ""
	req.URI = ""
	req.Version = ""
	clear(req.HeaderList)
	req.HeaderList = req.HeaderList[:0]
	clear(req.Body)
	req.Body = req.Body[:0]
	req.Range = Range{}
	req.TimedOut = false
	req.RemoteAddr = ""
	req.RemotePort = 0
	req.Payload = nil
	req.ParseErr = ""
}
