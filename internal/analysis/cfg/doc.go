// # Description
//
// Package cfg lowers a statement tree into a linear control flow graph.
//
// ## Instructions
//
// A graph is a sequence of instructions addressed by offset. Besides the
// data instructions (ReadVariable, WriteVariable) and the no-op Empty, the
// sequence holds branches (Goto, ConditionalGoto), exception transfers
// (ThrowTo, ConditionalThrowTo) and the Call/Return pair that emulates
// finally blocks as subroutines.
//
// Jump targets may equal Size: that offset is the exit of the graph.
//
// ## Construction
//
//  1. Build walks the tree once, recording the [start, end) offsets of every
//     node and patching forward jumps once their target is known.
//  2. A Policy decides which variables get data instructions.
//  3. Options control short-circuit jumps, constant folding of if
//     conditions and the exceptional edges added after expression statements.
//
// Building stops with a *CanceledError when the tree holds a Bad node or the
// context is done.
package cfg
