// enforcer is the governance CLI: build enforcement for Maven and Gradle
// dependency reports plus administration of artifacts, approvals and builds.
//
// Usage:
//
//	enforcer db init
//	mvn dependency:tree | enforcer maven --acronym ABC
//	gradle dependencies --configuration implementation | enforcer gradle --acronym ABC --version 1.2.0
//	enforcer artifact update com.acme:lib:1.0 --status GA --approved-by alice
//	enforcer approval grant com.acme:lib:1.0 --acronym ABC --architect alice
//	enforcer build export 42 -o bom.json --sign-key board.asc
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	orchestrators "github.com/ochairo/enforcer/internal/domain-orchestrators"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes
const (
	exitOK          = 0
	exitBuildFailed = 1
	exitError       = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
// A governance denial exits 1 with the infractions on stderr; any other failure exits 2.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	a := newApp(stdin, stdout, stderr, getenv)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var failure *orchestrators.BuildFailure
	if errors.As(err, &failure) {
		fmt.Fprint(stderr, failure.Infractions)
		return exitBuildFailed
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}
