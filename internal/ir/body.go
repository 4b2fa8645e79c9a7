package ir

// Local is one local-variable slot of a function body.
type Local struct {
	Name   string
	Layout *Layout
}

// Body is the callee description needed to push an activation record.
//
// Local 0 is the return slot; locals 1..ArgCount are the parameters in
// declaration order; the remaining locals are temporaries.
type Body struct {
	Name     string
	Locals   []Local
	ArgCount int
}

// ReturnLocal is the index of the return slot.
const ReturnLocal = 0

// Args returns the local indices of the parameters in positional order.
func (b *Body) Args() []int {
	n := min(b.ArgCount, len(b.Locals)-1)
	args := make([]int, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		args = append(args, i)
	}
	return args
}
