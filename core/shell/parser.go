package shell

// The validator accepts the following grammar:
//
//	inputline    := <empty> | chain ( ("&" | "&&" | "||") inputline )?
//	chain        := builtin options | pipeline redirections
//	pipeline     := command ( "|" pipeline )?
//	command      := identifier options
//	redirections := <empty> | "<" file ( ">" file )? | ">" file ( "<" file )?
//
// Builtins may not take part in pipelines or redirections.

// Validate checks that tokens form a well-formed input line. It returns the
// first token it could not consume; the line is valid only if ok is true and
// rest is nil.
func Validate(tokens *Token) (rest *Token, ok bool) {
	p := &validator{cur: tokens}
	ok = p.inputLine()
	return p.cur, ok
}

// Valid is shorthand for a full Validate pass.
func Valid(tokens *Token) bool {
	rest, ok := Validate(tokens)
	return ok && rest == nil
}

type validator struct {
	cur *Token
}

func (v *validator) accept(op string) bool {
	if v.cur.IsOperator(op) {
		v.cur = v.cur.Next
		return true
	}
	return false
}

func (v *validator) identifier() bool {
	if v.cur == nil || v.cur.Kind == OperatorToken {
		return false
	}
	v.cur = v.cur.Next
	return true
}

func (v *validator) options() bool {
	for v.cur != nil && v.cur.Kind != OperatorToken {
		v.cur = v.cur.Next
	}
	return true
}

func (v *validator) inputLine() bool {
	if v.cur == nil {
		return true
	}
	if !v.chain() {
		return false
	}
	if v.accept(OpBackground) || v.accept(OpAnd) || v.accept(OpOr) {
		return v.inputLine()
	}
	return true
}

func (v *validator) chain() bool {
	if v.cur != nil && v.cur.Kind == OptionToken && IsBuiltin(v.cur.Text) {
		v.cur = v.cur.Next
		return v.options()
	}
	return v.pipeline() && v.redirections()
}

func (v *validator) pipeline() bool {
	if !v.command() {
		return false
	}
	if v.accept(OpPipe) {
		return v.pipeline()
	}
	return true
}

func (v *validator) command() bool {
	return v.identifier() && v.options()
}

func (v *validator) redirections() bool {
	switch {
	case v.accept(OpInput):
		if !v.identifier() {
			return false
		}
		if v.accept(OpOutput) {
			return v.identifier()
		}
	case v.accept(OpOutput):
		if !v.identifier() {
			return false
		}
		if v.accept(OpInput) {
			return v.identifier()
		}
	}
	return true
}
