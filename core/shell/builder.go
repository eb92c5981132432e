package shell

// BuiltinNames lists the commands handled inside the shell, in the order
// they are documented.
var BuiltinNames = []string{"exit", "status", "cd", "jobs", "kill"}

// IsBuiltin reports whether name is one of BuiltinNames.
func IsBuiltin(name string) bool {
	for _, builtin := range BuiltinNames {
		if name == builtin {
			return true
		}
	}
	return false
}

// Build rewrites a validated token sequence into a chain of builtin and
// pipeline nodes joined by operator nodes, preserving the order of the
// input and every chaining operator.
func Build(tokens *Token) *Node {
	if tokens == nil {
		return nil
	}

	var node *Node
	if tokens.Kind == OptionToken && IsBuiltin(tokens.Text) {
		node, tokens = buildBuiltin(tokens)
	} else {
		node, tokens = buildPipeline(tokens)
	}

	if tokens != nil {
		node.Next = &Node{
			Kind: OperatorNode,
			Op:   tokens.Text,
			Next: Build(tokens.Next),
		}
	}
	return node
}

func buildBuiltin(tokens *Token) (*Node, *Token) {
	args, rest := copyArgs(tokens)
	return &Node{
		Kind:    BuiltinNode,
		Builtin: &BuiltinCall{Name: args[0], Args: args[1:]},
	}, rest
}

func buildPipeline(tokens *Token) (*Node, *Token) {
	pipeline := &Pipeline{}
	rest := consumePipeline(pipeline, tokens)
	return &Node{Kind: PipelineNode, Pipeline: pipeline}, rest
}

// consumePipeline adds tokens to p until it reaches an operator that ends
// the pipeline, which it returns.
func consumePipeline(p *Pipeline, tokens *Token) *Token {
	if tokens == nil {
		return nil
	}
	if tokens.Kind != OperatorToken {
		args, rest := copyArgs(tokens)
		p.Commands = append(p.Commands, args)
		return consumePipeline(p, rest)
	}

	switch tokens.Text {
	case OpInput, OpOutput:
		file := tokens.Next
		if file == nil || file.Kind == OperatorToken {
			return file
		}
		if tokens.Text == OpInput {
			p.Input, p.HasInput = file.Text, true
		} else {
			p.Output, p.HasOutput = file.Text, true
		}
		return consumePipeline(p, file.Next)
	case OpPipe:
		return consumePipeline(p, tokens.Next)
	default:
		return tokens
	}
}

// copyArgs copies identifiers up to the next operator.
func copyArgs(tokens *Token) (Command, *Token) {
	var args Command
	for ; tokens != nil && tokens.Kind != OperatorToken; tokens = tokens.Next {
		args = append(args, tokens.Text)
	}
	return args, tokens
}
