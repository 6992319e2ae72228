package bundler

import (
	"fmt"
	"time"

	"rogchap.com/v8go"
)

const prelude = `var g = {};
var module = { exports: {} };
`

// Evaluate runs a CommonJS program in a fresh isolate and returns expr
// evaluated afterwards. require only resolves the runtime module.
func Evaluate(source, expr string, timeout time.Duration) (string, error) {
	iso := v8go.NewIsolate()
	defer iso.Dispose()

	program := fmt.Sprintf(`(function (module, exports, require) {
%s
})(module, module.exports, function (name) {
	if (name === %q) return g;
	throw new Error("cannot require " + name);
});`, source, GlobalModule)

	errs := make(chan error, 1)
	vals := make(chan string, 1)
	go func() {
		val, err := run(iso, program, expr)
		if err != nil {
			errs <- err
			return
		}
		vals <- val
	}()

	select {
	case val := <-vals:
		return val, nil
	case err := <-errs:
		return "", err
	case <-time.After(timeout):
		iso.TerminateExecution()
		select {
		case <-errs:
		case <-vals:
		}
		return "", fmt.Errorf("bundle evaluation took longer than %s", timeout)
	}
}

// run closes its context before the result is handed back.
func run(iso *v8go.Isolate, program, expr string) (string, error) {
	ctx := v8go.NewContext(iso)
	defer ctx.Close()
	if _, err := ctx.RunScript(prelude, "prelude.js"); err != nil {
		return "", err
	}
	if _, err := ctx.RunScript(program, "bundle.js"); err != nil {
		return "", fmt.Errorf("error loading bundle: %w", err)
	}
	val, err := ctx.RunScript(expr, "check.js")
	if err != nil {
		return "", err
	}
	return val.String(), nil
}

// Verify loads the bundle and checks that it exports a function or object.
func Verify(source string, timeout time.Duration) error {
	kind, err := Evaluate(source, "typeof module.exports", timeout)
	if err != nil {
		return err
	}
	if kind != "function" && kind != "object" {
		return fmt.Errorf("bundle exports a %s, expected a function or object", kind)
	}
	return nil
}
