package db

// Command names recorded on Error.
const (
	OpDel     = "DEL"
	OpEval    = "EVALSHA"
	OpHGetAll = "HGETALL"
	OpHSet    = "HSET"
	OpPing    = "PING"
	OpScan    = "SCAN"
)

// Error records which command failed.
type Error struct {
	Op  string
	Key string // empty for keyless commands
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "db " + e.Op + ": " + e.Err.Error()
	}
	return "db " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
