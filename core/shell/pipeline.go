package shell

import (
	"fmt"
	"strings"
)

// Command is a program name followed by its arguments.
type Command []string

// Pipeline is a sequence of commands connected stdout to stdin. Input
// applies to the first command and Output to the last one. The Has flags
// tell a missing redirection apart from one naming the empty string.
type Pipeline struct {
	Commands  []Command
	Input     string
	Output    string
	HasInput  bool
	HasOutput bool
}

// NumCommands returns the number of processes the pipeline spawns.
func (p *Pipeline) NumCommands() int {
	return len(p.Commands)
}

func (p *Pipeline) String() string {
	var cmds []string
	for _, cmd := range p.Commands {
		cmds = append(cmds, strings.Join(cmd, " "))
	}
	out := strings.Join(cmds, " | ")
	if p.HasInput {
		out += " < " + p.Input
	}
	if p.HasOutput {
		out += " > " + p.Output
	}
	return out
}

// BuiltinCall is a builtin name and the arguments that followed it.
type BuiltinCall struct {
	Name string
	Args []string
}

func (b *BuiltinCall) String() string {
	return strings.Join(append([]string{b.Name}, b.Args...), " ")
}

// NodeKind tags a chain Node.
type NodeKind int

const (
	BuiltinNode NodeKind = iota
	PipelineNode
	OperatorNode
)

// Node is one element of a built chain. Executable nodes (builtins and
// pipelines) alternate with operator nodes.
type Node struct {
	Kind     NodeKind
	Builtin  *BuiltinCall
	Pipeline *Pipeline
	Op       string
	Next     *Node
}

// FollowingOp returns the operator after an executable node, or "" at the
// end of the chain.
func (n *Node) FollowingOp() string {
	if n.Next != nil && n.Next.Kind == OperatorNode {
		return n.Next.Op
	}
	return ""
}

// String renders the chain one node per line.
func (n *Node) String() string {
	var sb strings.Builder
	for ; n != nil; n = n.Next {
		switch n.Kind {
		case BuiltinNode:
			fmt.Fprintf(&sb, "builtin  %s\n", n.Builtin)
		case PipelineNode:
			fmt.Fprintf(&sb, "pipeline %s (commands=%d", n.Pipeline, n.Pipeline.NumCommands())
			if n.Pipeline.HasInput {
				fmt.Fprintf(&sb, " input=%q", n.Pipeline.Input)
			}
			if n.Pipeline.HasOutput {
				fmt.Fprintf(&sb, " output=%q", n.Pipeline.Output)
			}
			sb.WriteString(")\n")
		case OperatorNode:
			fmt.Fprintf(&sb, "operator %s\n", n.Op)
		}
	}
	return sb.String()
}
