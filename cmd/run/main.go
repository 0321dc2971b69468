package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/ffibridge/binding"
	"github.com/wippyai/ffibridge/config"
	"github.com/wippyai/ffibridge/engine"
	"github.com/wippyai/ffibridge/native"
	"github.com/wippyai/ffibridge/runtime"
)

// argList collects repeated -arg flags.
type argList []string

func (a *argList) String() string { return strings.Join(*a, " ") }

func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

type options struct {
	configPath  string
	wasmFile    string
	namespace   string
	manifest    string
	funcName    string
	logLevel    string
	args        argList
	list        bool
	interactive bool
	wasi        bool
	trace       bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to native library wasm file")
	flag.StringVar(&o.namespace, "ns", "", "Library namespace symbols are derived from")
	flag.StringVar(&o.manifest, "manifest", "", "Manifest declaring function signatures")
	flag.StringVar(&o.funcName, "func", "", "Function to call")
	flag.Var(&o.args, "arg", "Argument to pass, parsed against the declared type (repeatable)")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&o.list, "list", false, "List exported functions and exit")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&o.wasi, "wasi", false, "Provide wasi_snapshot_preview1 to the library")
	flag.BoolVar(&o.trace, "trace", false, "Print call spans to stdout")
	flag.Parse()

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Library.Path == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <lib.wasm> -ns <namespace> [-manifest lib.wit] -func name [-arg value ...]")
		fmt.Fprintln(os.Stderr, "       run -wasm <lib.wasm> -ns <namespace> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <lib.wasm> -ns <namespace> -manifest lib.wit -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       run -config ffibridge.yaml ...")
		os.Exit(1)
	}

	if o.interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flags over it.
func loadConfig(o options) (*config.Config, error) {
	cfg := config.Defaults()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		config.ApplyEnvOverrides(cfg)
	}

	if o.wasmFile != "" {
		cfg.Library.Path = o.wasmFile
	}
	if o.namespace != "" {
		cfg.Library.Namespace = o.namespace
	}
	if o.manifest != "" {
		cfg.Library.Manifest = o.manifest
	}
	if o.wasi {
		cfg.Library.WASI = true
	}
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	}
	if o.trace {
		cfg.Tracer.Enabled = true
		cfg.Tracer.Exporter = "stdout"
	}
	if o.interactive {
		// Log lines would tear the TUI.
		cfg.Logger.Level = "error"
	}
	return cfg, config.Validate(cfg)
}

func run(cfg *config.Config, o options) error {
	ctx := context.Background()

	rt, err := runtime.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	defer rt.Close(ctx)

	fmt.Printf("Library: %s (namespace %s)\n", cfg.Library.Path, cfg.Library.Namespace)
	if lib, ok := rt.Library().(*engine.Library); ok {
		printExports(lib)
	}
	if m := rt.Manifest(); m != nil {
		fmt.Printf("\nDeclared functions:\n")
		for _, name := range m.Names() {
			sig, _ := m.Lookup(name)
			fmt.Printf("  %s\n", sig)
		}
	}

	if o.list {
		return nil
	}

	funcName := o.funcName
	if funcName == "" {
		funcName = defaultFunction(rt.Manifest())
		if funcName == "" {
			fmt.Printf("\nNo function specified. Use -func to pick one.\n")
			return nil
		}
	}
	funcName = strings.ReplaceAll(funcName, "-", "_")

	fmt.Printf("\nCalling %s(%s)...\n", funcName, strings.Join(o.args, ", "))
	result, err := rt.InvokeText(ctx, funcName, o.args...)
	if err != nil {
		var appErr *binding.AppError
		if errors.As(err, &appErr) {
			text, _ := binding.Format(appErr.Value)
			return fmt.Errorf("%s returned error: %s", funcName, strings.TrimSpace(text))
		}
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	text, err := binding.Format(result)
	if err != nil {
		return err
	}
	fmt.Printf("Result: %s\n", strings.TrimSpace(text))
	return nil
}

// defaultFunction picks a common entry point or the only declared function.
func defaultFunction(m *binding.Manifest) string {
	if m == nil {
		return ""
	}
	for _, name := range []string{"run", "main"} {
		if _, err := m.Lookup(name); err == nil {
			return name
		}
	}
	if names := m.Names(); len(names) == 1 {
		return names[0]
	}
	return ""
}

func printExports(lib *engine.Library) {
	groups := map[native.Role][]engine.Export{}
	for _, e := range lib.Exports() {
		groups[e.Role] = append(groups[e.Role], e)
	}

	order := []native.Role{
		native.RoleFunction, native.RolePoll, native.RoleComplete, native.RoleFree,
		native.RoleBuffer, native.RoleObjectClone, native.RoleObjectFree,
		native.RoleContract, native.RoleChecksum, native.RoleUnknown,
	}
	fmt.Printf("\nExports:\n")
	for _, role := range order {
		for _, e := range groups[role] {
			fmt.Printf("  %-12s %s %s\n", role, e.Symbol, e.Signature())
		}
	}
}
