package ir

import "strings"

// ParameterTarget builds the message target for a parameter of an operation
// ("OrderService.approve/Comment"). Server messages may prefix it with an
// entity path ("/Orders(1)/OrderService.approve/Comment").
func ParameterTarget(operation, parameter string) string {
	return operation + "/" + parameter
}

// ParameterOfTarget reports which parameter of operation a message target
// addresses. A segment matches the operation when it equals the qualified or
// the unqualified operation name, optionally followed by "(...)". The next
// segment must be one of params.
func ParameterOfTarget(target, operation string, params []string) (string, bool) {
	if target == "" || operation == "" {
		return "", false
	}
	short := operation
	if i := strings.LastIndex(operation, "."); i >= 0 {
		short = operation[i+1:]
	}

	segs := strings.Split(strings.TrimPrefix(target, "/"), "/")
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		if p := strings.IndexByte(seg, '('); p >= 0 {
			seg = seg[:p]
		}
		if seg != operation && seg != short {
			continue
		}
		next := segs[i+1]
		for _, name := range params {
			if next == name {
				return name, true
			}
		}
	}
	return "", false
}

// TargetsEntity reports whether a message target addresses the entity at
// path or something below it.
func TargetsEntity(target, path string) bool {
	if target == "" || path == "" {
		return false
	}
	return target == path || strings.HasPrefix(target, path+"/")
}
