package main

import (
	"errors"

	"github.com/aellingwood/sasswatch/internal/config"
	"github.com/spf13/pflag"
)

var (
	errNoInput     = errors.New("no input path specified")
	errExtraInput  = errors.New("only one input path is allowed")
	errExtraOutput = errors.New("only one output file is allowed")
	errExtraRoot   = errors.New("only one root dir is allowed")
	errExtraCmd    = errors.New("only one command is allowed")
)

// singleValue is a string flag that rejects being given twice.
type singleValue struct {
	value string
	set   bool
	dup   error
}

func newSingleValue(dup error) *singleValue {
	return &singleValue{dup: dup}
}

func (v *singleValue) String() string { return v.value }
func (v *singleValue) Type() string   { return "string" }

func (v *singleValue) Set(s string) error {
	if v.set {
		return v.dup
	}
	v.value = s
	v.set = true
	return nil
}

// addWatchFlags registers the flags that map onto config.Config.
func addWatchFlags(fs *pflag.FlagSet) {
	fs.VarP(newSingleValue(errExtraCmd), "command", "c", "command to run on every update; <input> and <output> are substituted, shell syntax allowed")
	fs.VarP(newSingleValue(errExtraOutput), "output", "o", "output CSS file path (default: stdout)")
	fs.VarP(newSingleValue(errExtraRoot), "root-dir", "r", "directory to watch for added and removed files (default: working directory)")
	fs.StringArrayP("include-path", "I", nil, "path to look for imported files; repeat for several")
	fs.StringSliceP("include-extensions", "e", config.DefaultExtensions(), "file extensions to watch")
	fs.CountP("verbose", "v", "verbosity level; repeat to increase")
	fs.StringArray("exclude", nil, "glob of directories under the root dir to skip; repeat for several")
	fs.Duration("debounce", config.DefaultDebounce, "window for coalescing repeated edits of one file")
	fs.Bool("livereload", false, "serve live reload notifications over WebSocket")
	fs.String("livereload-addr", config.DefaultLiveReloadAddr, "address for the live reload server")
}

// flagOverrides collects the flags given on the command line as
// config.WithOverrides keys. Flags left at their defaults are omitted so
// they do not mask the config file.
func flagOverrides(fs *pflag.FlagSet) map[string]any {
	overrides := make(map[string]any)
	if fs.Changed("command") {
		overrides["command"], _ = fs.GetString("command")
	}
	if fs.Changed("output") {
		overrides["output"], _ = fs.GetString("output")
	}
	if fs.Changed("root-dir") {
		overrides["rootDir"], _ = fs.GetString("root-dir")
	}
	if fs.Changed("include-path") {
		overrides["includePaths"], _ = fs.GetStringArray("include-path")
	}
	if fs.Changed("include-extensions") {
		overrides["includeExtensions"], _ = fs.GetStringSlice("include-extensions")
	}
	if fs.Changed("verbose") {
		overrides["verbosity"], _ = fs.GetCount("verbose")
	}
	if fs.Changed("exclude") {
		overrides["exclude"], _ = fs.GetStringArray("exclude")
	}
	if fs.Changed("debounce") {
		overrides["debounce"], _ = fs.GetDuration("debounce")
	}
	if fs.Changed("livereload") {
		overrides["liveReload"], _ = fs.GetBool("livereload")
	}
	if fs.Changed("livereload-addr") {
		overrides["liveReloadAddr"], _ = fs.GetString("livereload-addr")
	}
	return overrides
}
