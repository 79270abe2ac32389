// Package policy decides which host mount table entries are exposed inside a
// container root. The rule set is fixed and evaluated in order.
package policy

import (
	"strings"

	"hostfs/pkg/mounttable"
)

// Rule is a named exclusion predicate.
type Rule struct {
	Name  string
	Match func(e mounttable.Entry, rootPath string) bool
}

// Decision is the outcome of Evaluate. Reason names the rule that matched
// when Keep is false.
type Decision struct {
	Keep   bool
	Reason string
}

func keep() Decision {
	return Decision{Keep: true}
}

func skip(reason string) Decision {
	return Decision{Reason: reason}
}

// Prefix rules compare raw bytes, not path segments: "/devices" matches "/dev".
func mountpointPrefix(prefix string) func(mounttable.Entry, string) bool {
	return func(e mounttable.Entry, _ string) bool {
		return strings.HasPrefix(e.Mountpoint, prefix)
	}
}

func filesystemIs(fstype string) func(mounttable.Entry, string) bool {
	return func(e mounttable.Entry, _ string) bool {
		return e.Filesystem == fstype
	}
}

const (
	ReasonRoot          = "is_root"
	ReasonSys           = "sys_subtree"
	ReasonProc          = "proc_subtree"
	ReasonDev           = "dev_subtree"
	ReasonRun           = "run_subtree"
	ReasonVar           = "var_subtree"
	ReasonContainerRoot = "inside_container_root"
	ReasonTmpfs         = "tmpfs"
	ReasonCgroup        = "cgroup"
)

// DefaultRules is the exclusion policy for host filesystems.
var DefaultRules = []Rule{
	{Name: ReasonRoot, Match: func(e mounttable.Entry, _ string) bool { return e.Mountpoint == "/" }},
	{Name: ReasonSys, Match: mountpointPrefix("/sys")},
	{Name: ReasonProc, Match: mountpointPrefix("/proc")},
	{Name: ReasonDev, Match: mountpointPrefix("/dev")},
	{Name: ReasonRun, Match: mountpointPrefix("/run")},
	{Name: ReasonVar, Match: mountpointPrefix("/var")},
	// keeps the container tree from being bound onto itself
	{Name: ReasonContainerRoot, Match: func(e mounttable.Entry, rootPath string) bool {
		return rootPath != "" && strings.HasPrefix(e.Mountpoint, rootPath)
	}},
	{Name: ReasonTmpfs, Match: filesystemIs("tmpfs")},
	{Name: ReasonCgroup, Match: filesystemIs("cgroup")},
}

// Evaluate applies DefaultRules to e. The first matching rule wins.
func Evaluate(e mounttable.Entry, rootPath string) Decision {
	return EvaluateRules(DefaultRules, e, rootPath)
}

// EvaluateRules applies rules to e in order.
func EvaluateRules(rules []Rule, e mounttable.Entry, rootPath string) Decision {
	for _, r := range rules {
		if r.Match(e, rootPath) {
			return skip(r.Name)
		}
	}
	return keep()
}
