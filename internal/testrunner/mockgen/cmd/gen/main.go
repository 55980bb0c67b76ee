// Command gen is the go:generate entry point for internal/testrunner/mockgen:
// it wraps mockgen.Generate with a flag interface so a package can generate
// its own mocks with a single go:generate directive.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/conjecture-labs/conjecture/internal/testrunner/mockgen"
)

func main() {
	iface := flag.String("interface", "", "interface name to mock")
	pkg := flag.String("package", "", "package name of the generated file")
	dest := flag.String("destination", "", "output file path")
	source := flag.String("source", "./...", "comma-separated go/packages source patterns")
	flag.Parse()

	patterns := strings.Split(*source, ",")
	code, err := mockgen.Generate(mockgen.GenOptions{
		InterfaceName:  *iface,
		PackageName:    *pkg,
		Destination:    *dest,
		SourcePatterns: patterns,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "mockgen:", err)
		os.Exit(1)
	}
	if *dest == "" {
		fmt.Print(code)
	}
}
