package errors

import "strconv"

// ERR is the application error code carried by every *Error and across the gRPC boundary.
type ERR int32

const (
	ERR_UNKNOWN             ERR = 0
	ERR_INVALID_ARGUMENT    ERR = 1
	ERR_NOT_FOUND           ERR = 2
	ERR_PROCESSING          ERR = 3
	ERR_CONFIGURATION       ERR = 4
	ERR_CONTEXT             ERR = 5
	ERR_CONTEXT_CANCELED    ERR = 6
	ERR_ERROR               ERR = 7
	ERR_TIMEOUT             ERR = 8
	ERR_TX_INVALID          ERR = 30
	ERR_TX_ALREADY_EXISTS   ERR = 31
	ERR_TX_NOT_FOUND        ERR = 32
	ERR_TX_CONFLICT         ERR = 33
	ERR_SPENT               ERR = 34
	ERR_INSUFFICIENT_FUNDS  ERR = 35
	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_ERROR       ERR = 51
	ERR_SHARD_UNAVAILABLE   ERR = 52
	ERR_COORDINATION        ERR = 60
	ERR_INVARIANT_VIOLATION ERR = 61
)

var (
	ERR_name = map[int32]string{
		0:  "UNKNOWN",
		1:  "INVALID_ARGUMENT",
		2:  "NOT_FOUND",
		3:  "PROCESSING",
		4:  "CONFIGURATION",
		5:  "CONTEXT",
		6:  "CONTEXT_CANCELED",
		7:  "ERROR",
		8:  "TIMEOUT",
		30: "TX_INVALID",
		31: "TX_ALREADY_EXISTS",
		32: "TX_NOT_FOUND",
		33: "TX_CONFLICT",
		34: "SPENT",
		35: "INSUFFICIENT_FUNDS",
		50: "SERVICE_UNAVAILABLE",
		51: "SERVICE_ERROR",
		52: "SHARD_UNAVAILABLE",
		60: "COORDINATION",
		61: "INVARIANT_VIOLATION",
	}

	ERR_value = func() map[string]int32 {
		m := make(map[string]int32, len(ERR_name))
		for k, v := range ERR_name {
			m[v] = k
		}

		return m
	}()
)

func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

// ParseERR returns the code registered under name, or ERR_UNKNOWN.
func ParseERR(name string) ERR {
	if v, ok := ERR_value[name]; ok {
		return ERR(v)
	}

	return ERR_UNKNOWN
}
