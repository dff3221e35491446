package middleware

import "net/http"

// Decision tells a Chain whether to run the next stage.
type Decision int

const (
	Continue Decision = iota
	// Halt stops the chain. The stage has already written the response.
	Halt
)

func (d Decision) String() string {
	if d == Halt {
		return "halt"
	}
	return "continue"
}

// Stage is one step of the request pipeline. It returns the request the
// next stage sees, which lets a stage attach context values.
type Stage interface {
	Handle(w http.ResponseWriter, r *http.Request) (*http.Request, Decision)
}

// StageFunc adapts a function to Stage.
type StageFunc func(w http.ResponseWriter, r *http.Request) (*http.Request, Decision)

func (f StageFunc) Handle(w http.ResponseWriter, r *http.Request) (*http.Request, Decision) {
	return f(w, r)
}

// Chain runs its stages in order and then the wrapped handler.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Chain{stages: out}
}

// Then wraps next. It can be used directly as chi middleware.
func (c *Chain) Then(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, s := range c.stages {
			var d Decision
			r, d = s.Handle(w, r)
			if d == Halt {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
