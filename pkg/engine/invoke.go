package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// RunInvoked implements the invoke subcommand's body: decode the target's
// JSON-encoded args/kwargs, look the target up in the registry, call it,
// and translate its error into a process exit code. The host program's
// main() is expected to detect os.Args[1] == InvokeSubcommand() and call
// this instead of its normal startup path.
func RunInvoked(argv []string) int {
	if len(argv) != 3 {
		fmt.Fprintln(os.Stderr, "procflow invoke: expected target, args, kwargs")
		return 2
	}
	target, argsJSON, kwargsJSON := argv[0], argv[1], argv[2]

	fn, ok := LookupFunction(target)
	if !ok {
		fmt.Fprintf(os.Stderr, "procflow invoke: %v: %s\n", errUnknownTarget, target)
		return 2
	}

	var args []any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		fmt.Fprintf(os.Stderr, "procflow invoke: decode args: %v\n", err)
		return 2
	}
	var kwargs map[string]any
	if err := json.Unmarshal([]byte(kwargsJSON), &kwargs); err != nil {
		fmt.Fprintf(os.Stderr, "procflow invoke: decode kwargs: %v\n", err)
		return 2
	}

	if err := fn(args, kwargs); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

// InvokeSubcommand returns the hidden CLI verb a host's main() must match
// against os.Args[1] to route into RunInvoked.
func InvokeSubcommand() string { return invokeSubcommand }
