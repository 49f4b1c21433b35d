package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `{"code":"REQUEST_TIMEOUT","message":"request timed out"}`

func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
