// Package middleware
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler

// Stack is an ordered list of middleware. The first entry is the outermost
// wrapper and sees the request first.
type Stack []Middleware

func (s Stack) With(mws ...Middleware) Stack {
	out := make(Stack, 0, len(s)+len(mws))
	out = append(out, s...)
	return append(out, mws...)
}

func (s Stack) Wrap(h http.Handler) http.Handler {
	for i := len(s) - 1; i >= 0; i-- {
		h = s[i](h)
	}
	return h
}

func (s Stack) WrapFunc(fn http.HandlerFunc) http.Handler {
	return s.Wrap(fn)
}
