package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/gnolang/cflow/internal/analysis/cfg"
)

var (
	offsetStyle  = color.New(color.FgHiBlack)
	titleStyle   = color.New(color.FgCyan, color.Bold)
	jumpStyle    = color.New(color.FgYellow)
	throwStyle   = color.New(color.FgRed)
	accessStyle  = color.New(color.FgGreen)
	finallyStyle = color.New(color.FgMagenta)
	commentStyle = color.New(color.FgWhite, color.Faint)
	plainStyle   = color.New(color.Reset)
)

func instructionStyle(ins cfg.Instruction) *color.Color {
	switch ins.(type) {
	case cfg.Goto, cfg.ConditionalGoto:
		return jumpStyle
	case cfg.ThrowTo, cfg.ConditionalThrowTo:
		return throwStyle
	case cfg.ReadVariable, cfg.WriteVariable:
		return accessStyle
	case cfg.Call, cfg.Return:
		return finallyStyle
	case cfg.Comment:
		return commentStyle
	}
	return plainStyle
}

// WriteGraph lists the instructions of g, one per line, under a title
// naming the function. Finally blocks are listed after the instructions.
func WriteGraph(w io.Writer, title string, g *cfg.Graph) error {
	width := calculateMaxLineNumWidth(g.Size())

	var sb strings.Builder
	sb.WriteString(titleStyle.Sprintf("%s", title))
	sb.WriteString(fmt.Sprintf(" (%d instructions)\n", g.Size()))
	for off, ins := range g.Instructions() {
		sb.WriteString(offsetStyle.Sprintf("%*d: ", width, off))
		sb.WriteString(instructionStyle(ins).Sprint(ins.String()))
		sb.WriteString("\n")
	}
	for _, sub := range g.Subroutines() {
		sb.WriteString(finallyStyle.Sprint("finally"))
		sb.WriteString(fmt.Sprintf(" [%d, %d) returns %d, called from %v\n", sub.Begin, sub.End, sub.Returns, sub.Calls))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteDot writes g in Graphviz format. Each vertex is labeled with its
// offset and instruction.
func WriteDot(w io.Writer, g *cfg.Graph) error {
	return g.PrintDot(w, nil)
}
