package vm

import "strings"

// PassesFilter matches the function's debug name against a name filter,
// as used by flags that restrict tracing or optimization to some
// functions. Filter syntax:
//
//	""       only anonymous functions
//	"*"      every function
//	"~"      only anonymous functions
//	"-"      only named functions
//	"-f"     every function except those matching f
//	"pre*"   names starting with pre
//	"name"   exactly name
func (fi *FunctionInfo) PassesFilter(filter string) bool {
	return PassesNameFilter(fi.DebugName(), filter)
}

// PassesNameFilter applies the PassesFilter syntax to name.
func PassesNameFilter(name, filter string) bool {
	if filter == "" {
		return name == ""
	}
	positive := true
	if filter[0] == '-' {
		positive = false
		filter = filter[1:]
	}
	switch filter {
	case "":
		// "-" alone excludes anonymous functions.
		return name != ""
	case "*":
		return positive
	case "~":
		return (name == "") == positive
	}
	if prefix, ok := strings.CutSuffix(filter, "*"); ok {
		return strings.HasPrefix(name, prefix) == positive
	}
	return (name == filter) == positive
}
