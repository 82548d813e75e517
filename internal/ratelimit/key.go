package ratelimit

import (
	"fmt"
	"net"
	"net/http"
)

// KeyFunc picks the quota bucket for a request.
type KeyFunc func(r *http.Request) string

// GlobalKey puts every request in one bucket.
func GlobalKey(*http.Request) string { return "global" }

// RemoteIPKey buckets by client address. Behind a proxy it relies on
// chi's RealIP middleware having rewritten RemoteAddr.
func RemoteIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// KeyFuncFor maps a RATE_LIMIT_KEY value to its KeyFunc.
func KeyFuncFor(name string) (KeyFunc, error) {
	switch name {
	case "", "global":
		return GlobalKey, nil
	case "ip":
		return RemoteIPKey, nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown key strategy %q", name)
	}
}
