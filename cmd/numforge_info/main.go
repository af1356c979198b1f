// numforge_info prints the operation/element-type support matrix of the
// taskgo engine, plus per-dtype memory figures for a reference shape.
//
// Usage:
//
//	numforge_info [-dims 1024,1024]
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/backends/taskgo"
	"github.com/numforge/numforge/types/shapes"
)

var flagDims = flag.String("dims", "1024,1024", "reference shape used for the memory column")

func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, 0, len(parts))
	for _, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || dim < 0 {
			return nil, fmt.Errorf("invalid dimension %q", part)
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

func main() {
	flag.Parse()
	dims, err := parseDims(*flagDims)
	if err != nil {
		fmt.Fprintf(os.Stderr, "numforge_info: %v\n", err)
		os.Exit(1)
	}

	engine, err := taskgo.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "numforge_info: %v\n", err)
		os.Exit(1)
	}
	defer engine.Finalize()

	fmt.Printf("%s: %s\n\n", engine.Name(), engine.Description())

	supported := shapes.SupportedDTypes()
	fmt.Println("Element types:")
	for _, dtype := range supported {
		shape := shapes.Make(dtype, dims...)
		fmt.Printf("  %-10s %s for shape %s\n",
			dtype, humanize.Bytes(uint64(shape.Memory())), shape)
	}

	capabilities := engine.Capabilities()
	ops := make([]backends.OpType, 0, len(capabilities.Operations))
	for op := range capabilities.Operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	fmt.Println("\nOperations:")
	for _, op := range ops {
		var admitted []string
		for _, dtype := range supported {
			if capabilities.Supports(op, dtype) {
				admitted = append(admitted, dtype.String())
			}
		}
		fmt.Printf("  %-14s %-10s %s\n", op, op.Family(), strings.Join(admitted, " "))
	}
}
